package config

import "strconv"

type envReader func(string) string

func (e envReader) str(key string) string {
	return e(key)
}

// int returns 0 if unset or invalid.
func (e envReader) int(key string) int {
	v := e(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// bool accepts "1" and "true", like MAX_DEV always has.
func (e envReader) bool(key string) bool {
	v := e(key)
	return v == "1" || v == "true"
}
