package ta

import "math"

// SMA returns the simple moving average of the last n prices.
func SMA(prices []float64, n int) float64 {
	if len(prices) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(prices) - n; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(n)
}

// RSI returns the relative strength index over the given period.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

func StdDev(prices []float64, n int) float64 {
	if len(prices) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(prices, n)
	s := 0.0
	for i := len(prices) - n; i < len(prices); i++ {
		d := prices[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

// Bollinger returns the n-period moving average with bands k standard
// deviations away.
func Bollinger(prices []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(prices, n)
	sd := StdDev(prices, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

// ChangePercent returns the percent change between the first and last price
// of the window.
func ChangePercent(prices []float64) float64 {
	if len(prices) < 2 || prices[0] == 0 {
		return math.NaN()
	}
	return (prices[len(prices)-1] - prices[0]) / prices[0] * 100
}
