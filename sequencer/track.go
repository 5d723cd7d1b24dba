package sequencer

// TrackState holds the playback isolation flags of one track
type TrackState struct {
	Muted bool
	Solo  bool
}

// audible applies the mixer rule: muted tracks are silent, and while any
// track is soloed only soloed tracks sound.
func audible(tracks []TrackState, i int) bool {
	if i < 0 || i >= len(tracks) || tracks[i].Muted {
		return false
	}
	for _, t := range tracks {
		if t.Solo {
			return tracks[i].Solo
		}
	}
	return true
}
