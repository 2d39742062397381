package traci

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// packet accumulates the content of a single command. All multi-byte
// values on the TraCI wire are big endian.
type packet struct {
	buf bytes.Buffer
}

func newPacket() *packet {
	return &packet{}
}

func (p *packet) writeByte(v byte) {
	p.buf.WriteByte(v)
}

func (p *packet) writeInt(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	p.buf.Write(b[:])
}

func (p *packet) writeDouble(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	p.buf.Write(b[:])
}

func (p *packet) writeString(s string) {
	p.writeInt(int32(len(s)))
	p.buf.WriteString(s)
}

// Typed writers prefix the value with its wire type marker.

func (p *packet) writeTypedByte(v byte) {
	p.writeByte(typeByte)
	p.writeByte(v)
}

func (p *packet) writeTypedInt(v int32) {
	p.writeByte(typeInteger)
	p.writeInt(v)
}

func (p *packet) writeTypedDouble(v float64) {
	p.writeByte(typeDouble)
	p.writeDouble(v)
}

func (p *packet) writeTypedString(s string) {
	p.writeByte(typeString)
	p.writeString(s)
}

func (p *packet) writeTypedStringList(items []string) {
	p.writeByte(typeStringList)
	p.writeInt(int32(len(items)))
	for _, s := range items {
		p.writeString(s)
	}
}

func (p *packet) writeCompound(itemCount int32) {
	p.writeByte(typeCompound)
	p.writeInt(itemCount)
}

func (p *packet) bytes() []byte {
	return p.buf.Bytes()
}

// frameCommand wraps a command's content with the TraCI length header.
// Short commands carry a single length byte covering the whole frame;
// anything larger uses the 0x00 marker followed by a 4 byte length.
func frameCommand(cmd byte, content []byte) []byte {
	short := 1 + 1 + len(content)
	if short <= 255 {
		out := make([]byte, 0, short)
		out = append(out, byte(short), cmd)
		return append(out, content...)
	}
	ext := 1 + 4 + 1 + len(content)
	out := make([]byte, 0, ext)
	out = append(out, 0x00)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(ext))
	out = append(out, b[:]...)
	out = append(out, cmd)
	return append(out, content...)
}

// frameMessage prefixes framed commands with the overall message length,
// which counts the 4 length bytes themselves.
func frameMessage(commands ...[]byte) []byte {
	total := 4
	for _, c := range commands {
		total += len(c)
	}
	out := make([]byte, 4, total)
	binary.BigEndian.PutUint32(out, uint32(total))
	for _, c := range commands {
		out = append(out, c...)
	}
	return out
}

// payload is a cursor over received message bytes
type payload struct {
	data []byte
	pos  int
}

func newPayload(data []byte) *payload {
	return &payload{data: data}
}

func (p *payload) remaining() int {
	return len(p.data) - p.pos
}

func (p *payload) readByte() (byte, error) {
	if p.remaining() < 1 {
		return 0, fmt.Errorf("payload truncated at offset %d", p.pos)
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *payload) readInt() (int32, error) {
	if p.remaining() < 4 {
		return 0, fmt.Errorf("payload truncated at offset %d", p.pos)
	}
	v := int32(binary.BigEndian.Uint32(p.data[p.pos:]))
	p.pos += 4
	return v, nil
}

func (p *payload) readDouble() (float64, error) {
	if p.remaining() < 8 {
		return 0, fmt.Errorf("payload truncated at offset %d", p.pos)
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(p.data[p.pos:]))
	p.pos += 8
	return v, nil
}

func (p *payload) readString() (string, error) {
	n, err := p.readInt()
	if err != nil {
		return "", err
	}
	if n < 0 || p.remaining() < int(n) {
		return "", fmt.Errorf("string length %d exceeds payload at offset %d", n, p.pos)
	}
	s := string(p.data[p.pos : p.pos+int(n)])
	p.pos += int(n)
	return s, nil
}

func (p *payload) readStringList() ([]string, error) {
	n, err := p.readInt()
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := p.readString()
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

// expectType consumes a type marker and verifies it
func (p *payload) expectType(want byte) error {
	got, err := p.readByte()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("unexpected wire type 0x%02x, want 0x%02x", got, want)
	}
	return nil
}

func (p *payload) readTypedDouble() (float64, error) {
	if err := p.expectType(typeDouble); err != nil {
		return 0, err
	}
	return p.readDouble()
}

func (p *payload) readTypedInt() (int32, error) {
	if err := p.expectType(typeInteger); err != nil {
		return 0, err
	}
	return p.readInt()
}

func (p *payload) readTypedString() (string, error) {
	if err := p.expectType(typeString); err != nil {
		return "", err
	}
	return p.readString()
}

func (p *payload) readTypedStringList() ([]string, error) {
	if err := p.expectType(typeStringList); err != nil {
		return nil, err
	}
	return p.readStringList()
}

// skipValue consumes one typed value of any supported kind. Used to step
// over reservation fields added by newer SUMO releases.
func (p *payload) skipValue() error {
	t, err := p.readByte()
	if err != nil {
		return err
	}
	switch t {
	case typeUByte, typeByte:
		_, err = p.readByte()
	case typeInteger:
		_, err = p.readInt()
	case typeDouble:
		_, err = p.readDouble()
	case typeString:
		_, err = p.readString()
	case typeStringList:
		_, err = p.readStringList()
	case typeCompound:
		var n int32
		if n, err = p.readInt(); err != nil {
			return err
		}
		for i := int32(0); i < n; i++ {
			if err = p.skipValue(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cannot skip wire type 0x%02x", t)
	}
	return err
}
