// Package geo decodes the packed point geometry stored with every reading.
//
// A location is the hex text of an EWKB point: an 18 character header that is
// ignored, then longitude and latitude as little-endian IEEE-754 doubles, 16 hex
// characters each.
package geo

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"strings"
)

const (
	headerLen = 18
	floatLen  = 16
	// minEncodedLen is the shortest input that still carries both doubles.
	minEncodedLen = headerLen + 2*floatLen

	// PointHeader is the EWKB header written by Encode: little endian, point with SRID, SRID 4326.
	PointHeader = "0101000020E6100000"
)

// ErrNotDecodable is returned for any location that is not a packed point.
var ErrNotDecodable = errors.New("location not decodable")

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Decode parses a packed location into a coordinate.
func Decode(location string) (LatLng, error) {
	if len(location) <= 20 || len(location) < minEncodedLen || !isHex(location) {
		return LatLng{}, ErrNotDecodable
	}

	lng, ok := readFloat(location[headerLen : headerLen+floatLen])
	if !ok {
		return LatLng{}, ErrNotDecodable
	}
	lat, ok := readFloat(location[headerLen+floatLen : minEncodedLen])
	if !ok {
		return LatLng{}, ErrNotDecodable
	}

	return LatLng{Lat: lat, Lng: lng}, nil
}

// DecodeOK is Decode for callers that only skip on failure.
func DecodeOK(location string) (LatLng, bool) {
	ll, err := Decode(location)
	return ll, err == nil
}

// Encode packs a coordinate using PointHeader.
func Encode(ll LatLng) string {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(ll.Lng))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(ll.Lat))
	return PointHeader + strings.ToUpper(hex.EncodeToString(buf[:]))
}

func readFloat(field string) (float64, bool) {
	var scratch [8]byte
	if _, err := hex.Decode(scratch[:], []byte(field)); err != nil {
		return 0, false
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(scratch[:]))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
