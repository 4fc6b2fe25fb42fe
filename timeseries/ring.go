package timeseries

// ring keeps the most recent samples of one channel.
type ring struct {
	data  []float64
	start int
	n     int
}

func newRing(size int) *ring {
	if size < 1 {
		size = 1
	}
	return &ring{data: make([]float64, size)}
}

func (r *ring) Len() int {
	return r.n
}

func (r *ring) Cap() int {
	return len(r.data)
}

func (r *ring) Push(v float64) {
	if r.n < len(r.data) {
		r.data[(r.start+r.n)%len(r.data)] = v
		r.n++
		return
	}
	r.data[r.start] = v
	r.start = (r.start + 1) % len(r.data)
}

// Values returns the samples from oldest to newest.
func (r *ring) Values() []float64 {
	out := make([]float64, r.n)
	for i := range out {
		out[i] = r.data[(r.start+i)%len(r.data)]
	}
	return out
}

func (r *ring) Last() (float64, bool) {
	if r.n == 0 {
		return 0, false
	}
	return r.data[(r.start+r.n-1)%len(r.data)], true
}

// Resize changes the capacity, keeping the newest samples.
func (r *ring) Resize(size int) {
	if size < 1 {
		size = 1
	}
	if size == len(r.data) {
		return
	}
	values := r.Values()
	if len(values) > size {
		values = values[len(values)-size:]
	}
	r.data = make([]float64, size)
	r.start = 0
	r.n = copy(r.data, values)
}

func (r *ring) Clear() {
	r.start, r.n = 0, 0
}

// movingAverage returns the centered moving average of values over an odd
// window. The result is shorter by width-1 samples.
func movingAverage(values []float64, width int) []float64 {
	if width <= 1 {
		return append([]float64(nil), values...)
	}
	if len(values) < width {
		return []float64{}
	}
	out := make([]float64, 0, len(values)-width+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= width {
			sum -= values[i-width]
		}
		if i >= width-1 {
			out = append(out, sum/float64(width))
		}
	}
	return out
}
