package domain

// IndicatorSnapshot holds per-bar derived values.
// Every field is a single scalar for the bar it is aligned to; the
// indicator pipeline withholds bars until all trailing windows are full,
// so a snapshot never carries a partially-filled value.
type IndicatorSnapshot struct {
	MA50      float64 // simple moving average of close, 50 bars
	MA150     float64 // simple moving average of close, 150 bars
	VolumeMA  float64 // simple moving average of volume, 20 bars
	MACD      float64 // EMA12(close) - EMA26(close)
	Signal    float64 // EMA9 of MACD
	Histogram float64 // MACD - Signal
	RSI       float64 // 14-bar relative strength index, 0..100
}
