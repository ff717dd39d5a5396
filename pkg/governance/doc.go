// Package governance holds the permission model for collective authorization.
//
// A Policy maps participant identities to the capabilities they hold per
// action category, and maps each category to the voting threshold that
// governs its proposals. Policies are immutable once installed; governance
// changes replace the whole policy atomically, because policy changes are
// themselves proposals.
//
// Lookups never fail: an unknown participant, category or capability simply
// yields false or an absent config. Absence means no right.
package governance
