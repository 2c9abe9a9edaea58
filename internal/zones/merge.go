package zones

// MergeRects overlays reported zones onto the slot space generated from
// caps. Slots without a reported zone become disabled placeholders with the
// default footprint; reported zones outside the capability range are
// dropped. Merging an already merged list returns it unchanged.
func MergeRects(caps Capabilities, reported []Rect) []Rect {
	byRef := make(map[Ref]Rect, len(reported))
	for _, r := range reported {
		if _, dup := byRef[r.Ref()]; !dup {
			byRef[r.Ref()] = r.Normalized()
		}
	}
	slots := GenerateSlots(caps)
	out := make([]Rect, 0, len(slots))
	for _, ref := range slots {
		if r, ok := byRef[ref]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, placeholderRect(ref))
	}
	return out
}

// MergePolygons is MergeRects for polygon-mode devices. Reported polygons
// with fewer than three vertices are treated as missing.
func MergePolygons(caps Capabilities, reported []Polygon) []Polygon {
	byRef := make(map[Ref]Polygon, len(reported))
	for _, p := range reported {
		if !p.Valid() {
			continue
		}
		if _, dup := byRef[p.Ref()]; !dup {
			byRef[p.Ref()] = p.Clone()
		}
	}
	slots := GenerateSlots(caps)
	out := make([]Polygon, 0, len(slots))
	for _, ref := range slots {
		if p, ok := byRef[ref]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, placeholderPolygon(ref))
	}
	return out
}
