package interop

import (
	"encoding/binary"
	"math"
	"reflect"
)

// Buffer protocol on []byte values. Multi-byte accessors take the byte
// order explicitly.

var bytesType = reflect.TypeFor[[]byte]()

// HasBuffer reports whether h exposes the buffer protocol.
func (h *HostObject) HasBuffer() bool {
	if h.static || !h.e.policy.BufferAccess || h.value == nil {
		return false
	}
	rt := reflect.TypeOf(h.value)
	return rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8
}

func (h *HostObject) buffer() ([]byte, error) {
	if !h.HasBuffer() {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "buffer access"}
	}
	return reflect.ValueOf(h.value).Convert(bytesType).Interface().([]byte), nil
}

func (h *HostObject) window(off int64, n int) ([]byte, error) {
	b, err := h.buffer()
	if err != nil {
		return nil, err
	}
	if off < 0 || off+int64(n) > int64(len(b)) {
		return nil, &InvalidIndexError{Index: off, Size: int64(len(b))}
	}
	return b[off : off+int64(n)], nil
}

// BufferSize returns the buffer length in bytes.
func (h *HostObject) BufferSize() int64 {
	b, err := h.buffer()
	if err != nil {
		return 0
	}
	return int64(len(b))
}

func (h *HostObject) ReadBufferByte(off int64) (int8, error) {
	w, err := h.window(off, 1)
	if err != nil {
		return 0, err
	}
	return int8(w[0]), nil
}

func (h *HostObject) WriteBufferByte(off int64, v int8) error {
	w, err := h.window(off, 1)
	if err != nil {
		return err
	}
	w[0] = byte(v)
	return nil
}

func (h *HostObject) ReadBufferShort(order binary.ByteOrder, off int64) (int16, error) {
	w, err := h.window(off, 2)
	if err != nil {
		return 0, err
	}
	return int16(order.Uint16(w)), nil
}

func (h *HostObject) WriteBufferShort(order binary.ByteOrder, off int64, v int16) error {
	w, err := h.window(off, 2)
	if err != nil {
		return err
	}
	order.PutUint16(w, uint16(v))
	return nil
}

func (h *HostObject) ReadBufferInt(order binary.ByteOrder, off int64) (int32, error) {
	w, err := h.window(off, 4)
	if err != nil {
		return 0, err
	}
	return int32(order.Uint32(w)), nil
}

func (h *HostObject) WriteBufferInt(order binary.ByteOrder, off int64, v int32) error {
	w, err := h.window(off, 4)
	if err != nil {
		return err
	}
	order.PutUint32(w, uint32(v))
	return nil
}

func (h *HostObject) ReadBufferLong(order binary.ByteOrder, off int64) (int64, error) {
	w, err := h.window(off, 8)
	if err != nil {
		return 0, err
	}
	return int64(order.Uint64(w)), nil
}

func (h *HostObject) WriteBufferLong(order binary.ByteOrder, off int64, v int64) error {
	w, err := h.window(off, 8)
	if err != nil {
		return err
	}
	order.PutUint64(w, uint64(v))
	return nil
}

func (h *HostObject) ReadBufferFloat(order binary.ByteOrder, off int64) (float32, error) {
	w, err := h.window(off, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(order.Uint32(w)), nil
}

func (h *HostObject) WriteBufferFloat(order binary.ByteOrder, off int64, v float32) error {
	w, err := h.window(off, 4)
	if err != nil {
		return err
	}
	order.PutUint32(w, math.Float32bits(v))
	return nil
}

func (h *HostObject) ReadBufferDouble(order binary.ByteOrder, off int64) (float64, error) {
	w, err := h.window(off, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(order.Uint64(w)), nil
}

func (h *HostObject) WriteBufferDouble(order binary.ByteOrder, off int64, v float64) error {
	w, err := h.window(off, 8)
	if err != nil {
		return err
	}
	order.PutUint64(w, math.Float64bits(v))
	return nil
}
