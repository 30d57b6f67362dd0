package decode

import "math"

// nlTable is the CPR "number of longitude zones" lookup table for
// latitudes 0-90 degrees, indexed by the rounded absolute latitude.
var nlTable = [91]int{
	59, 59, 59, 59, 59, 59, 59, 59, 59, 59, 59, 58, 58, 58, 58, 57,
	57, 57, 57, 56, 56, 56, 55, 55, 54, 54, 53, 53, 52, 52, 51, 51, 50, 50, 49,
	49, 48, 47, 47, 46, 45, 45, 44, 43, 43, 42, 41, 40, 40, 39, 38, 37, 36, 36,
	35, 34, 33, 32, 31, 30, 29, 29, 28, 27, 26, 25, 24, 23, 22, 21, 20, 19, 18,
	17, 16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 5, 4, 3, 2, 1, 1, 1,
}

func cprMod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func cprNL(lat float64) int {
	if lat < 0 {
		lat = -lat
	}
	lat = math.Round(lat)
	if int(lat) >= len(nlTable)-1 {
		return 1
	}
	return nlTable[int(lat)]
}

func cprN(lat float64, odd bool) int {
	nl := cprNL(lat)
	if odd {
		nl--
	}
	if nl < 1 {
		nl = 1
	}
	return nl
}

// GlobalPosition resolves an even/odd CPR pair into an unambiguous
// latitude/longitude using the globally-unambiguous algorithm (no receiver
// reference position required). lastIsOdd selects which half of the pair
// was most recently received, per the CPR spec's requirement that the most
// recent message determines which latitude zone is authoritative.
func GlobalPosition(evenLat, evenLon, oddLat, oddLon int, lastIsOdd bool) (lat, lon float64, ok bool) {
	return globalPosition(evenLat, evenLon, oddLat, oddLon, lastIsOdd, 360.0)
}

// GlobalSurfacePosition is GlobalPosition's counterpart for surface-position
// messages, which encode latitude in quarter-size zones (90 degrees of
// range instead of 360) for finer ground resolution.
func GlobalSurfacePosition(evenLat, evenLon, oddLat, oddLon int, lastIsOdd bool) (lat, lon float64, ok bool) {
	return globalPosition(evenLat, evenLon, oddLat, oddLon, lastIsOdd, 90.0)
}

func globalPosition(evenLat, evenLon, oddLat, oddLon int, lastIsOdd bool, rangeScale float64) (lat, lon float64, ok bool) {
	airDlat0 := rangeScale / 60.0
	airDlat1 := rangeScale / 59.0
	const cprScale = 131072.0 // 2^17

	rlat0 := float64(evenLat) / cprScale
	rlat1 := float64(oddLat) / cprScale
	rlon0 := float64(evenLon) / cprScale
	rlon1 := float64(oddLon) / cprScale

	j := int(math.Floor(59.0*rlat0 - 60.0*rlat1 + 0.5))

	lat0 := airDlat0 * (float64(cprMod(j, 60)) + rlat0)
	lat1 := airDlat1 * (float64(cprMod(j, 59)) + rlat1)
	if lat0 >= rangeScale*0.75 {
		lat0 -= rangeScale
	}
	if lat1 >= rangeScale*0.75 {
		lat1 -= rangeScale
	}

	if cprNL(lat0) != cprNL(lat1) {
		return 0, 0, false
	}

	lat = lat0
	if lastIsOdd {
		lat = lat1
	}
	if lat < -90 || lat > 90 {
		return 0, 0, false
	}

	ni := cprN(lat, lastIsOdd)
	m := int(math.Floor(rlon0*float64(cprNL(lat)-1)-rlon1*float64(cprNL(lat))+0.5))

	dlon := rangeScale / float64(ni)
	if lastIsOdd {
		lon = dlon * (float64(cprMod(m, ni)) + rlon1)
	} else {
		lon = dlon * (float64(cprMod(m, ni)) + rlon0)
	}

	if lon > 180 {
		lon -= 360
	}
	return lat, lon, true
}

// LocalPosition resolves a single CPR-encoded position against a known
// receiver reference location, used when no opposite-parity message is
// available within the bounded age window.
func LocalPosition(refLat, refLon float64, encLat, encLon int, odd bool, surface bool) (lat, lon float64, ok bool) {
	const cprScale = 131072.0

	dlatScale := 360.0
	if surface {
		dlatScale = 90.0
	}
	nz := 60.0
	dlat := dlatScale / nz
	if odd {
		dlat = dlatScale / (nz - 1)
	}

	rlat := float64(encLat) / cprScale
	j := math.Floor(refLat/dlat) + math.Floor(0.5+math.Mod(refLat, dlat)/dlat-rlat)
	lat = dlat * (j + rlat)

	nl := cprN(lat, odd)
	dlonScale := dlatScale
	dlon := dlonScale / float64(nl)

	rlon := float64(encLon) / cprScale
	m := math.Floor(refLon/dlon) + math.Floor(0.5+math.Mod(refLon, dlon)/dlon-rlon)
	lon = dlon * (m + rlon)

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
