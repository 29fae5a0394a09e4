package postgres

import "time"

func nullJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
