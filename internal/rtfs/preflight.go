package rtfs

// PreflightCapabilities walks forms and returns the set of capability ids
// referenced by actual (call :capability …) forms. Quoted strings that
// happen to look like capability ids never count (spec §4.6); only the
// keyword in head position of a call form is counted, so committing to
// string literals inside (call …) arguments cannot smuggle an extra
// capability reference past preflight.
func PreflightCapabilities(forms []Value) []string {
	seen := map[string]bool{}
	var ids []string
	var walk func(v Value)
	walk = func(v Value) {
		if v.Kind == KindList && len(v.Items) >= 2 {
			head := v.Items[0]
			if head.Kind == KindSymbol && head.Str == "call" {
				if cap := v.Items[1]; cap.Kind == KindKeyword {
					if !seen[cap.Str] {
						seen[cap.Str] = true
						ids = append(ids, cap.Str)
					}
				}
				for _, arg := range v.Items[2:] {
					walk(arg)
				}
				return
			}
		}
		switch v.Kind {
		case KindList, KindVector:
			for _, item := range v.Items {
				walk(item)
			}
		case KindMap:
			for _, p := range v.Pairs {
				walk(p.Key)
				walk(p.Value)
			}
		}
	}
	for _, f := range forms {
		walk(f)
	}
	return ids
}
