package sector

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/lattice"
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Snapshot is a read-only copy of a sector.
type Snapshot struct {
	Name       string        `json:"name"       msgpack:"name"`
	Tick       uint64        `json:"tick"       msgpack:"tick"`
	Dimensions int           `json:"dimensions" msgpack:"dimensions"`
	Nodes      []NodeState   `json:"nodes"      msgpack:"nodes"`
	Edges      []EdgeState   `json:"edges"      msgpack:"edges"`
	Sources    []SourceState `json:"sources"    msgpack:"sources"`
	Objects    []ObjectState `json:"objects"    msgpack:"objects"`
	Bodies     []BodyState   `json:"bodies"     msgpack:"bodies"`
}

type NodeState struct {
	Handle   models.Handle `json:"handle"   msgpack:"handle"`
	Position mgl64.Vec3    `json:"position" msgpack:"position"`
	Velocity mgl64.Vec3    `json:"velocity" msgpack:"velocity"`
	Pinned   bool          `json:"pinned"   msgpack:"pinned"`
}

type EdgeState struct {
	A          models.Handle `json:"a"           msgpack:"a"`
	B          models.Handle `json:"b"           msgpack:"b"`
	RestLength float64       `json:"rest_length" msgpack:"rest_length"`
	Length     float64       `json:"length"      msgpack:"length"`
}

type SourceState struct {
	Handle models.Handle `json:"handle" msgpack:"handle"`
	Source field.Source  `json:"source" msgpack:"source"`
}

type ObjectState struct {
	Name     string     `json:"name"     msgpack:"name"`
	Position mgl64.Vec3 `json:"position" msgpack:"position"`
	Size     float64    `json:"size"     msgpack:"size"`
	Modules  []string   `json:"modules"  msgpack:"modules"`
}

type BodyState struct {
	Handle models.Handle `json:"handle" msgpack:"handle"`
	Body   body.State    `json:"body"   msgpack:"body"`
}

func (s *Sector) Snapshot() Snapshot {
	snap := Snapshot{
		Name:       s.name,
		Tick:       s.tick,
		Dimensions: s.config.Lattice.Dimensions,
		Nodes:      make([]NodeState, 0, s.lattice.NodeCount()),
	}

	s.lattice.Each(func(h models.Handle, n lattice.Node) bool {
		snap.Nodes = append(snap.Nodes, NodeState{
			Handle:   h,
			Position: n.Position,
			Velocity: n.Velocity,
			Pinned:   n.Pinned,
		})
		return true
	})

	connections := s.lattice.Connections()
	snap.Edges = make([]EdgeState, 0, len(connections))
	for _, c := range connections {
		length, _ := s.lattice.Length(c.A, c.B)
		snap.Edges = append(snap.Edges, EdgeState{
			A:          c.A,
			B:          c.B,
			RestLength: c.RestLength,
			Length:     length,
		})
	}

	for _, h := range s.field.Handles() {
		src, _ := s.field.Get(h)
		snap.Sources = append(snap.Sources, SourceState{
			Handle: h,
			Source: src,
		})
	}

	for _, o := range s.objects {
		state := ObjectState{
			Name:     o.Name,
			Position: o.Position,
			Size:     o.Size,
		}
		for _, m := range o.Modules {
			state.Modules = append(state.Modules, m.Name())
		}
		snap.Objects = append(snap.Objects, state)
	}

	s.bodies.Each(func(h models.Handle, bp **body.Body) bool {
		snap.Bodies = append(snap.Bodies, BodyState{
			Handle: h,
			Body:   (*bp).State(),
		})
		return true
	})

	return snap
}

// Encode marshals the snapshot with the given codec.
func (s Snapshot) Encode(codec string) ([]byte, error) {
	switch codec {
	case CodecJSON, "":
		return json.Marshal(s)
	case CodecMsgpack:
		return msgpack.Marshal(s)
	default:
		return nil, unknownCodec(codec)
	}
}

// DecodeSnapshot unmarshals a snapshot encoded with the given codec.
func DecodeSnapshot(data []byte, codec string) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)

	switch codec {
	case CodecJSON, "":
		err = json.Unmarshal(data, &snap)
	case CodecMsgpack:
		err = msgpack.Unmarshal(data, &snap)
	default:
		err = unknownCodec(codec)
	}
	return snap, err
}

// IsValidCodec reports whether codec names a supported snapshot codec.
func IsValidCodec(codec string) bool {
	switch codec {
	case CodecJSON, CodecMsgpack:
		return true
	default:
		return false
	}
}

func unknownCodec(codec string) error {
	return errors.New("unknown snapshot codec").
		WithType(models.ErrTypeInvalidMessage).
		WithTag("codec", codec)
}
