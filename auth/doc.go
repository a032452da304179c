// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifiers, proposer keys and participant tokens.

# Admin Keys

The proposer's admin key is an HMAC-SHA256 of the decision ID:

	adminKey := auth.GenerateAdminKey(decisionID, salt)
	err := auth.ValidateAdminKey(decisionID, adminKey, salt)

Keys are deterministic, so they are never stored.

# Participant Tokens

Every participant, the proposer included, receives a random 192-bit token
when invited. Requests identify the caller with the X-Participant-Token
header:

	token, err := auth.GenerateParticipantToken()

# IDs

Database records use random UUIDs:

	id := auth.NewID()

# IP Hashing

Vote origins are stored as a salted hash, never the raw address:

	hash := auth.HashIP(ipAddress, salt)
*/
package auth
