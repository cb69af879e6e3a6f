package forecast

import "time"

const secondsPerDay = 24 * 60 * 60

// FeaturesAt computes the predictors for date relative to anchor, the earliest
// historical date. Both are expected at midnight UTC. Days are counted on Unix
// seconds since time.Duration saturates past roughly 292 years.
func FeaturesAt(anchor, date time.Time) FeatureRow {
	return FeatureRow{
		ElapsedDays: int((date.Unix() - anchor.Unix()) / secondsPerDay),
		Month:       int(date.Month()),
	}
}

// Engineer derives one FeatureRow per observation, in series order.
func Engineer(series Series) []FeatureRow {
	if len(series) == 0 {
		return nil
	}
	anchor := series.First().Date
	rows := make([]FeatureRow, len(series))
	for i, o := range series {
		rows[i] = FeaturesAt(anchor, o.Date)
	}
	return rows
}
