package dispatch

import "testing"

func touch(buf []byte) {
	for i := 0; i < len(buf); i += 64 {
		buf[i]++
	}
}

func BenchmarkScratchPool(b *testing.B) {
	p := NewFixedSizeBufferPool(16, 128)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, idx := p.Get()
			touch(buf)
			p.Return(idx)
		}
	})
}

func TestPoolBuffersComeBackZeroed(t *testing.T) {

	p := NewFixedSizeBufferPool(1, 32)

	buf, idx := p.Get()
	copy(buf, "leftover record bytes")
	p.Return(idx)

	buf, idx = p.Get()
	defer p.Return(idx)

	for i, v := range buf {
		if v != 0 {
			t.Fatalf("byte %d not zeroed on reuse", i)
		}
	}
}
