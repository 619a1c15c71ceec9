package collector

// Score maps one observation to a 0-100 composite quality score. Penalties
// come from four independent buckets (latency, download, upload,
// obstruction) plus the SNR flag; within a bucket only the highest matching
// threshold applies. Inputs are clamped to zero first so a negative reading
// cannot fall through every threshold and report a perfect link.
func Score(latencyMs, downloadMbps, uploadMbps, obstructionPct float64, snrAboveNoise bool) int {
	latencyMs = clampZero(latencyMs)
	downloadMbps = clampZero(downloadMbps)
	uploadMbps = clampZero(uploadMbps)
	obstructionPct = clampZero(obstructionPct)

	score := 100

	switch {
	case latencyMs > 100:
		score -= 30
	case latencyMs > 75:
		score -= 20
	case latencyMs > 50:
		score -= 10
	}

	switch {
	case downloadMbps < 10:
		score -= 25
	case downloadMbps < 25:
		score -= 15
	case downloadMbps < 50:
		score -= 5
	}

	switch {
	case uploadMbps < 3:
		score -= 25
	case uploadMbps < 8:
		score -= 15
	case uploadMbps < 15:
		score -= 5
	}

	switch {
	case obstructionPct > 10:
		score -= 20
	case obstructionPct > 5:
		score -= 15
	case obstructionPct > 1:
		score -= 10
	case obstructionPct > 0.1:
		score -= 5
	}

	if !snrAboveNoise {
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
