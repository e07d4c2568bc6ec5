package player

import (
	"fmt"
	"strings"
)

// Profile selects how decoded audio leaves the player.
type Profile int

const (
	// ProfileDirect renders at the stream's native rate.
	ProfileDirect Profile = iota
	// ProfileRealtime renders through the exchange queue, resampled to the
	// output rate.
	ProfileRealtime
	// ProfileClip decodes in realtime into the PCM cache, optionally
	// playing while it downloads.
	ProfileClip
	// ProfileOffline decodes into the PCM cache as fast as possible.
	ProfileOffline
)

var profileNames = map[Profile]string{
	ProfileDirect:   "direct",
	ProfileRealtime: "realtime",
	ProfileClip:     "clip",
	ProfileOffline:  "offline",
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return "unknown"
}

func ParseProfile(s string) (Profile, error) {
	for p, name := range profileNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return ProfileRealtime, fmt.Errorf("unknown profile %q", s)
}

// caches reports whether decoded audio is written to the PCM cache.
func (p Profile) caches() bool {
	return p == ProfileClip || p == ProfileOffline
}

// tolerant profiles ride out short data shortages instead of stopping.
func (p Profile) tolerant() bool {
	return p == ProfileRealtime
}

// renders reports whether the profile plays to the output device.
func (p Profile) renders(playWhileDownloading bool) bool {
	switch p {
	case ProfileDirect, ProfileRealtime:
		return true
	case ProfileClip:
		return playWhileDownloading
	}
	return false
}
