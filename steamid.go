package steamtrade

import (
	"strconv"
)

// SteamID is a 64-bit Steam account identifier.
//
// Bits 0-31 hold the account id, 32-51 the instance, 52-55 the account type
// and 56-63 the universe.
type SteamID uint64

const (
	universePublic    = 1
	accountIndividual = 1
	instanceDesktop   = 1
)

// ParseDefaults sets sid to the public individual desktop id for accountID.
func (sid *SteamID) ParseDefaults(accountID uint32) {
	*sid = SteamID(uint64(universePublic)<<56 |
		uint64(accountIndividual)<<52 |
		uint64(instanceDesktop)<<32 |
		uint64(accountID))
}

// ParseSteamID parses the decimal form of a 64-bit id.
func ParseSteamID(s string) (SteamID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return SteamID(id), nil
}

// SteamIDFromAccountID returns the public individual id for accountID.
func SteamIDFromAccountID(accountID uint32) SteamID {
	var sid SteamID
	sid.ParseDefaults(accountID)
	return sid
}

func (sid SteamID) GetAccountID() uint32 {
	return uint32(sid)
}

func (sid SteamID) ToString() string {
	return strconv.FormatUint(uint64(sid), 10)
}

func (sid SteamID) String() string {
	return sid.ToString()
}
