package notation

// Segment groups a flat note sequence into fixed-length measures. Notes that
// straddle a measure boundary are split into tied halves; an incomplete final
// measure is padded with a single rest. The returned padding is the length of
// that synthetic rest in sixteenths (0 when the content ends exactly on a
// boundary) so that round-trip conversions can avoid re-emitting it as user
// content. Rests split without tie flags: a tie only makes sense between
// sounding notes.
func Segment(notes []Note, ts TimeSignature) ([]Measure, int) {
	spm := ts.SixteenthsPerMeasure()
	if spm <= 0 || len(notes) == 0 {
		return nil, 0
	}
	var out []Measure
	cur := Measure{}
	for _, n := range notes {
		remaining := n.Sixteenths
		tiedFrom := n.TiedFrom
		for remaining > 0 {
			room := spm - cur.TotalSixteenths
			take := remaining
			if take > room {
				take = room
			}
			piece := newNote(n.Sound, take)
			if n.Sound != Rest {
				piece.TiedFrom = tiedFrom
				piece.TiedTo = take < remaining || n.TiedTo
			}
			cur.Notes = append(cur.Notes, piece)
			cur.TotalSixteenths += take
			remaining -= take
			tiedFrom = remaining > 0
			if cur.TotalSixteenths == spm {
				out = append(out, cur)
				cur = Measure{}
			}
		}
	}
	padding := 0
	if cur.TotalSixteenths > 0 {
		padding = spm - cur.TotalSixteenths
		cur.Notes = append(cur.Notes, newNote(Rest, padding))
		cur.TotalSixteenths = spm
		out = append(out, cur)
	}
	return out, padding
}
