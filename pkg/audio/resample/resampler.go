// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts float32 capture frames between rates via interpolation
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		position:   0.0,
	}
}

// Passthrough reports whether resampling is a no-op for this pair of rates
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// Resample converts one interleaved input frame to the output rate and
// returns the converted samples. Fractional read position is carried
// across calls so consecutive frames stay continuous.
func (r *Resampler) Resample(input []float32) []float32 {
	if r.Passthrough() {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}
	if len(input) == 0 {
		return nil
	}

	inputFrames := len(input) / r.channels
	output := make([]float32, 0, r.OutputSamplesNeeded(len(input)))

	for {
		inputPos := r.position
		inputIdx := int(inputPos)

		if inputIdx >= inputFrames-1 {
			break
		}

		frac := float32(inputPos - float64(inputIdx))

		for ch := 0; ch < r.channels; ch++ {
			sample1 := input[inputIdx*r.channels+ch]
			sample2 := input[(inputIdx+1)*r.channels+ch]
			output = append(output, sample1*(1.0-frac)+sample2*frac)
		}

		r.position += r.ratio
	}

	// Keep only the fractional part for the next frame
	r.position -= float64(int(r.position))

	return output
}

// Reset clears the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded estimates output sample count for an input count
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}
