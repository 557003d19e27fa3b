package fdt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors returned by Parse and the discovery helpers built on it.
var (
	ErrNotFound         = errors.New("fdt: node or property not found")
	ErrWidthUnsupported = errors.New("fdt: unsupported #address-cells/#size-cells width")
	ErrDeviceFailure    = errors.New("fdt: malformed device tree blob")
)

// Parse decodes a flattened device tree blob into a Node tree.
//
// Only the structure block and string table are interpreted; the memory
// reservation map is skipped since nothing downstream consumes it.
func Parse(blob []byte) (Node, error) {
	if len(blob) < fdtHeaderSize {
		return Node{}, fmt.Errorf("%w: blob too small for header", ErrDeviceFailure)
	}
	if magic := binary.BigEndian.Uint32(blob[0:4]); magic != fdtMagic {
		return Node{}, fmt.Errorf("%w: bad magic 0x%x", ErrDeviceFailure, magic)
	}
	offStruct := binary.BigEndian.Uint32(blob[8:12])
	offStrings := binary.BigEndian.Uint32(blob[12:16])

	if int(offStruct) > len(blob) || int(offStrings) > len(blob) {
		return Node{}, fmt.Errorf("%w: offsets out of range", ErrDeviceFailure)
	}

	p := &parser{
		structure: blob[offStruct:],
		strings:   blob[offStrings:],
	}

	tok, err := p.nextToken()
	if err != nil {
		return Node{}, err
	}
	if tok != fdtBeginNodeToken {
		return Node{}, fmt.Errorf("%w: expected root FDT_BEGIN_NODE", ErrDeviceFailure)
	}
	root, err := p.parseNode()
	if err != nil {
		return Node{}, err
	}
	return root, nil
}

type parser struct {
	structure []byte
	pos       int
	strings   []byte
}

func (p *parser) nextToken() (uint32, error) {
	for {
		v, err := p.readU32()
		if err != nil {
			return 0, err
		}
		if v == fdtNopToken {
			continue
		}
		return v, nil
	}
}

func (p *parser) readU32() (uint32, error) {
	if p.pos+4 > len(p.structure) {
		return 0, fmt.Errorf("%w: truncated structure block", ErrDeviceFailure)
	}
	v := binary.BigEndian.Uint32(p.structure[p.pos:])
	p.pos += 4
	return v, nil
}

func (p *parser) readCString() (string, error) {
	start := p.pos
	for p.pos < len(p.structure) && p.structure[p.pos] != 0 {
		p.pos++
	}
	if p.pos >= len(p.structure) {
		return "", fmt.Errorf("%w: unterminated name", ErrDeviceFailure)
	}
	s := string(p.structure[start:p.pos])
	p.pos++ // consume NUL
	p.align()
	return s, nil
}

func (p *parser) align() {
	for p.pos%4 != 0 {
		p.pos++
	}
}

func (p *parser) stringAt(off uint32) (string, error) {
	if int(off) >= len(p.strings) {
		return "", fmt.Errorf("%w: string offset out of range", ErrDeviceFailure)
	}
	end := int(off)
	for end < len(p.strings) && p.strings[end] != 0 {
		end++
	}
	return string(p.strings[off:end]), nil
}

// parseNode assumes the FDT_BEGIN_NODE token has already been consumed.
func (p *parser) parseNode() (Node, error) {
	name, err := p.readCString()
	if err != nil {
		return Node{}, err
	}
	n := Node{Name: name, Properties: map[string]Property{}}

	for {
		tok, err := p.nextToken()
		if err != nil {
			return Node{}, err
		}
		switch tok {
		case fdtPropToken:
			propName, value, err := p.parseProperty()
			if err != nil {
				return Node{}, err
			}
			n.Properties[propName] = rawProperty(value)
		case fdtBeginNodeToken:
			child, err := p.parseNode()
			if err != nil {
				return Node{}, err
			}
			n.Children = append(n.Children, child)
		case fdtEndNodeToken:
			return n, nil
		case fdtEndToken:
			return n, nil
		default:
			return Node{}, fmt.Errorf("%w: unexpected token 0x%x", ErrDeviceFailure, tok)
		}
	}
}

func (p *parser) parseProperty() (string, []byte, error) {
	length, err := p.readU32()
	if err != nil {
		return "", nil, err
	}
	nameOff, err := p.readU32()
	if err != nil {
		return "", nil, err
	}
	name, err := p.stringAt(nameOff)
	if err != nil {
		return "", nil, err
	}
	if p.pos+int(length) > len(p.structure) {
		return "", nil, fmt.Errorf("%w: property %q overruns structure block", ErrDeviceFailure, name)
	}
	value := p.structure[p.pos : p.pos+int(length)]
	p.pos += int(length)
	p.align()
	return name, value, nil
}

// rawProperty stores a parsed property payload as raw bytes; callers that
// know the expected type use PropertyU32/PropertyString/PropertyU64Cells below rather than
// Property's typed fields, since a parsed blob carries no type tag.
func rawProperty(data []byte) Property {
	return Property{Bytes: append([]byte(nil), data...)}
}

const fdtNopToken = 0x4

// Find walks slash-separated child names ("cpus/cpu@0") starting at n and returns the
// matching descendant.
func (n Node) Find(path string) (Node, bool) {
	if path == "" {
		return n, true
	}
	cur := n
	seg := ""
	for _, part := range splitPath(path) {
		seg = part
		found := false
		for _, child := range cur.Children {
			if child.Name == seg {
				cur = child
				found = true
				break
			}
		}
		if !found {
			return Node{}, false
		}
	}
	return cur, true
}

// FindPrefix returns every direct child whose name starts with prefix,
// e.g. "cpu" to match "cpu@0", "cpu@1", ... under /cpus.
func (n Node) FindPrefix(prefix string) []Node {
	var out []Node
	for _, child := range n.Children {
		if len(child.Name) >= len(prefix) && child.Name[:len(prefix)] == prefix {
			out = append(out, child)
		}
	}
	return out
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		parts = append(parts, path[start:])
	}
	return parts
}

// PropertyU32 returns a property's payload decoded as a big-endian u32 array.
func (n Node) PropertyU32(name string) ([]uint32, bool) {
	p, ok := n.Properties[name]
	if !ok {
		return nil, false
	}
	if len(p.U32) > 0 {
		return p.U32, true
	}
	if len(p.Bytes) == 0 || len(p.Bytes)%4 != 0 {
		return nil, false
	}
	out := make([]uint32, len(p.Bytes)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(p.Bytes[i*4:])
	}
	return out, true
}

// PropertyString returns a property's payload as a NUL-terminated string.
func (n Node) PropertyString(name string) (string, bool) {
	p, ok := n.Properties[name]
	if !ok {
		return "", false
	}
	if len(p.Strings) > 0 {
		return p.Strings[0], true
	}
	if len(p.Bytes) == 0 {
		return "", false
	}
	end := len(p.Bytes)
	if p.Bytes[end-1] == 0 {
		end--
	}
	return string(p.Bytes[:end]), true
}

// PropertyU64Cells reinterprets a property as a sequence of big-endian cells
// of the given width (1 or 2 32-bit words each) — the shape every `reg` and
// `interrupts-extended` property in a real device tree uses.
func (n Node) PropertyU64Cells(name string, cells int) ([]uint64, error) {
	raw, ok := n.PropertyU32(name)
	if !ok {
		return nil, ErrNotFound
	}
	if cells != 1 && cells != 2 {
		return nil, ErrWidthUnsupported
	}
	if len(raw)%cells != 0 {
		return nil, fmt.Errorf("%w: %q length not a multiple of %d cells", ErrDeviceFailure, name, cells)
	}
	out := make([]uint64, len(raw)/cells)
	for i := range out {
		if cells == 1 {
			out[i] = uint64(raw[i])
		} else {
			out[i] = uint64(raw[i*2])<<32 | uint64(raw[i*2+1])
		}
	}
	return out, nil
}
