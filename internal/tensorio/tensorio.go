// Package tensorio gathers per-payload input contributions into the
// single contiguous tensor an engine session runs on, and disperses its
// output tensors back to each payload that asked for them (spec section
// 4.3, C3). Failures are split into two classes: a malformed payload
// contribution is recorded on that payload's status and does not stop
// the rest of the batch from assembling; a structural failure (wrong
// element count, engine error) is returned to the caller, which aborts
// the whole run.
package tensorio

import (
	"encoding/binary"

	"inferd/internal/engine"
	"inferd/internal/memmgr"
	"inferd/pkg/dtype"
	"inferd/pkg/payload"
	"inferd/pkg/rterr"
	"inferd/pkg/tensorinfo"
)

// AssembleInput builds the single engine tensor for one input name across
// every payload in the batch, per spec section 4.3's input assembly
// steps 1-7. totalBatchSize is the sum of every payload's batch size;
// maxBatchSize distinguishes a NO_BATCHING context (no leading batch
// axis) from a batching one. It returns the assembled tensor and whether
// an asynchronous device copy was enqueued on stream; when one was, it
// syncs stream itself before any string parsing, matching step 7.
func AssembleInput(
	name string,
	declared tensorinfo.TensorInfo,
	maxBatchSize int,
	totalBatchSize int,
	payloads []*payload.Payload,
	mem *memmgr.Manager,
	stream *memmgr.Stream,
) (engine.Tensor, bool, error) {
	shape := declared.Shape
	if maxBatchSize != 0 {
		shape = tensorinfo.WithLeadingDim(int64(totalBatchSize), declared.Shape)
	}
	batch1Elements := tensorinfo.ElementCount(declared.Shape)

	expected := make([]int, len(payloads))
	total := 0
	for i, p := range payloads {
		in, ok := p.Request.Inputs[name]
		if !ok {
			return nil, false, rterr.Internal("tensorio: payload missing input %q", name)
		}
		var size int
		if declared.DType.IsString() {
			size = in.BatchByteSize
		} else {
			elemSize, ok := declared.DType.ByteSize()
			if !ok {
				return nil, false, rterr.Internal("tensorio: input %q has no fixed byte size for dtype %s", name, declared.DType)
			}
			size = p.Request.BatchSize * int(batch1Elements) * elemSize
		}
		expected[i] = size
		total += size
	}

	slack := 0
	if declared.DType.IsString() {
		slack = 1
	}
	buf := make([]byte, total+slack)

	asyncEnqueued := false
	offset := 0
	liveLen := make([]int, len(payloads))
	for i, p := range payloads {
		in := p.Request.Inputs[name]
		slot := buf[offset : offset+expected[i]]
		src := in.Data
		if len(src) > len(slot) {
			src = src[:len(slot)]
		}
		liveLen[i] = len(src)
		if len(src) > 0 {
			ok, async := mem.Copy(src, slot, payload.MemCPU, payload.MemCPU, stream)
			if !ok {
				return nil, asyncEnqueued, rterr.Internal("tensorio: copy failed staging input %q for a payload", name)
			}
			if async {
				asyncEnqueued = true
			}
		}
		offset += expected[i]
	}

	if asyncEnqueued && stream != nil {
		stream.Sync()
	}

	if declared.DType.IsString() {
		return assembleStringTensor(name, declared.DType, shape, int(batch1Elements), payloads, buf, expected, liveLen), asyncEnqueued, nil
	}
	return engine.NewFixedTensor(declared.DType, shape, buf[:total]), asyncEnqueued, nil
}

// assembleStringTensor decodes each payload's (u32 length, bytes)*
// region independently. A payload whose declared batch_byte_size region
// runs out of bytes mid-element has its status set to InvalidArg and its
// remaining elements padded with empty strings, so the batch as a whole
// still presents a consistent element count to the engine.
func assembleStringTensor(
	name string,
	dt dtype.DType,
	shape []int64,
	batch1Elements int,
	payloads []*payload.Payload,
	buf []byte,
	slotSizes []int,
	liveLens []int,
) engine.Tensor {
	if batch1Elements == 0 {
		batch1Elements = 1
	}
	values := make([][]byte, 0)
	offset := 0
	for i, p := range payloads {
		wantElements := p.Request.BatchSize * batch1Elements
		region := buf[offset : offset+liveLens[i]]
		cursor := 0
		failed := false
		for e := 0; e < wantElements; e++ {
			if failed {
				values = append(values, []byte{})
				continue
			}
			if cursor+4 > len(region) {
				failed = true
				p.Status.Set(rterr.InvalidArg("incomplete string data for input %q", name))
				values = append(values, []byte{})
				continue
			}
			length := int(binary.LittleEndian.Uint32(region[cursor : cursor+4]))
			cursor += 4
			if length < 0 || cursor+length > len(region) {
				failed = true
				p.Status.Set(rterr.InvalidArg("incomplete string data for input %q", name))
				values = append(values, []byte{})
				continue
			}
			elem := make([]byte, length)
			copy(elem, region[cursor:cursor+length])
			values = append(values, elem)
			cursor += length
		}
		offset += slotSizes[i]
	}
	return engine.NewStringTensor(dt, shape, values)
}

// DisperseOutput scatters one engine output tensor back to every payload
// that requested it, per spec section 4.3's output dispersion. A
// per-payload copy failure sets that payload's status and does not stop
// the others; a whole-tensor size mismatch is returned as a structural
// error for the caller to treat as a run-level failure.
func DisperseOutput(
	name string,
	declared tensorinfo.TensorInfo,
	maxBatchSize int,
	totalBatchSize int,
	out engine.Tensor,
	payloads []*payload.Payload,
	mem *memmgr.Manager,
	stream *memmgr.Stream,
) (bool, error) {
	batch1Elements := tensorinfo.ElementCount(declared.Shape)
	asyncEnqueued := false

	if declared.DType.IsString() {
		values := out.Strings()
		wantTotal := totalBatchSize * int(batch1Elements)
		if len(values) != wantTotal {
			return false, rterr.Internal("tensorio: output %q returned %d elements, want %d", name, len(values), wantTotal)
		}
		idx := 0
		for _, p := range payloads {
			cnt := p.Request.BatchSize * int(batch1Elements)
			elems := values[idx : idx+cnt]
			idx += cnt
			if !p.Status.Ok() || p.ResponseProvider == nil || !p.ResponseProvider.RequiresOutput(name) {
				continue
			}
			dataBytes := 0
			for _, e := range elems {
				dataBytes += len(e)
			}
			size := dataBytes + 4*len(elems)
			shape := declared.Shape
			if maxBatchSize != 0 {
				shape = tensorinfo.WithLeadingDim(int64(p.Request.BatchSize), declared.Shape)
			}
			dst, _, err := p.ResponseProvider.AllocateOutputBuffer(name, size, shape, payload.MemCPU)
			if err != nil || len(dst) < size {
				p.Status.Set(rterr.Internal("tensorio: failed to allocate output buffer for %q", name))
				continue
			}
			local := make([]byte, size)
			cursor := 0
			for _, e := range elems {
				binary.LittleEndian.PutUint32(local[cursor:cursor+4], uint32(len(e)))
				cursor += 4
				copy(local[cursor:cursor+len(e)], e)
				cursor += len(e)
			}
			ok, async := mem.Copy(local, dst, payload.MemCPU, payload.MemCPU, stream)
			if !ok {
				p.Status.Set(rterr.Internal("tensorio: copy failed dispersing output %q", name))
				continue
			}
			if async {
				asyncEnqueued = true
			}
		}
		if asyncEnqueued && stream != nil {
			stream.Sync()
		}
		return asyncEnqueued, nil
	}

	elemSize, ok := declared.DType.ByteSize()
	if !ok {
		return false, rterr.Internal("tensorio: output %q has no fixed byte size for dtype %s", name, declared.DType)
	}
	actual := out.Bytes()
	wantBytes := totalBatchSize * int(batch1Elements) * elemSize
	if len(actual) != wantBytes {
		return false, rterr.Internal("tensorio: output %q returned %d bytes, want %d", name, len(actual), wantBytes)
	}
	offset := 0
	for _, p := range payloads {
		size := p.Request.BatchSize * int(batch1Elements) * elemSize
		region := actual[offset : offset+size]
		offset += size
		if !p.Status.Ok() || p.ResponseProvider == nil || !p.ResponseProvider.RequiresOutput(name) {
			continue
		}
		shape := declared.Shape
		if maxBatchSize != 0 {
			shape = tensorinfo.WithLeadingDim(int64(p.Request.BatchSize), declared.Shape)
		}
		dst, _, err := p.ResponseProvider.AllocateOutputBuffer(name, size, shape, payload.MemCPU)
		if err != nil || len(dst) < size {
			p.Status.Set(rterr.Internal("tensorio: failed to allocate output buffer for %q", name))
			continue
		}
		ok, async := mem.Copy(region, dst, payload.MemCPU, payload.MemCPU, stream)
		if !ok {
			p.Status.Set(rterr.Internal("tensorio: copy failed dispersing output %q", name))
			continue
		}
		if async {
			asyncEnqueued = true
		}
	}
	if asyncEnqueued && stream != nil {
		stream.Sync()
	}
	return asyncEnqueued, nil
}
