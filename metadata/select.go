package metadata

// Select picks the artifact matching the given version and property filter.
//
// If version is non-empty, only artifacts with exactly that version are
// eligible; otherwise all versions are. The filter narrows eligibility to
// artifacts carrying every listed property; artifacts with additional,
// unfiltered properties stay eligible.
//
// Among eligible artifacts the highest version wins (CompareVersions order).
// When versions compare equal the artifact listed later in the document wins:
// documents are appended to over time, so the last entry is the most recently
// published one.
//
// The second return value is false when no artifact is eligible.
func Select(md *Metadata, version string, filter map[string]string) (*Artifact, bool) {
	var best *Artifact
	for _, a := range md.Artifacts {
		if version != "" && a.Version != version {
			continue
		}
		if !a.HasProperties(filter) {
			continue
		}
		if best == nil || CompareVersions(a.Version, best.Version) >= 0 {
			best = a
		}
	}
	return best, best != nil
}
