package scene

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tidwall/gjson"
)

var ErrMalformedScene = errors.New("malformed scene payload")

// GLTFImporter reads the node hierarchy of a glTF JSON document. Mesh,
// material and buffer data are ignored; the simulation only needs names,
// transforms and the extras used to tag agents and rigid bodies:
//
//	"extras": {"tag": "Agent", "rigidbody": true, "mass": 1.5}
type GLTFImporter struct{}

func NewGLTFImporter() *GLTFImporter {
	return &GLTFImporter{}
}

func (i *GLTFImporter) Import(ctx context.Context, data []byte, reg AgentRegistrar) (*Scene, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedScene)
	}
	doc := gjson.ParseBytes(data)

	nodes := doc.Get("nodes").Array()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrMalformedScene)
	}

	roots, err := rootIndices(doc, nodes)
	if err != nil {
		return nil, err
	}

	b := &builder{ctx: ctx, nodes: nodes, reg: reg, visiting: make(map[int]bool)}
	root := &Node{ID: "root", Name: doc.Get("scenes." + strconv.Itoa(sceneIndex(doc)) + ".name").String()}
	for _, idx := range roots {
		child, err := b.build(idx, mgl64.Vec3{})
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}

	s := New(root)
	log.Printf("Imported scene %s with %d nodes", s.ID, s.Len())
	return s, nil
}

func sceneIndex(doc gjson.Result) int {
	if v := doc.Get("scene"); v.Exists() {
		return int(v.Int())
	}
	return 0
}

// rootIndices returns the node indices of the default scene, or every node
// that is nobody's child when the document declares no scenes.
func rootIndices(doc gjson.Result, nodes []gjson.Result) ([]int, error) {
	scenes := doc.Get("scenes").Array()
	if len(scenes) > 0 {
		si := sceneIndex(doc)
		if si < 0 || si >= len(scenes) {
			return nil, fmt.Errorf("%w: default scene %d out of range", ErrMalformedScene, si)
		}
		var roots []int
		for _, v := range scenes[si].Get("nodes").Array() {
			roots = append(roots, int(v.Int()))
		}
		return roots, nil
	}

	isChild := make(map[int]bool)
	for _, n := range nodes {
		for _, c := range n.Get("children").Array() {
			isChild[int(c.Int())] = true
		}
	}
	var roots []int
	for i := range nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

type builder struct {
	ctx      context.Context
	nodes    []gjson.Result
	reg      AgentRegistrar
	visiting map[int]bool
}

// build converts node idx and its subtree. origin is the world position of
// the parent; only translations are composed, parent rotation and scale
// are not applied.
func (b *builder) build(idx int, origin mgl64.Vec3) (*Node, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(b.nodes) {
		return nil, fmt.Errorf("%w: node index %d out of range", ErrMalformedScene, idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("%w: cycle at node %d", ErrMalformedScene, idx)
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	raw := b.nodes[idx]
	n := &Node{
		ID:        strconv.Itoa(idx),
		Name:      raw.Get("name").String(),
		Tag:       raw.Get("extras.tag").String(),
		RigidBody: raw.Get("extras.rigidbody").Bool(),
		Mass:      raw.Get("extras.mass").Float(),
	}
	if n.Name == "" {
		n.Name = "node_" + n.ID
	}
	if t := raw.Get("translation").Array(); len(t) == 3 {
		n.Translation = mgl64.Vec3{t[0].Float(), t[1].Float(), t[2].Float()}
	}
	n.Position = origin.Add(n.Translation)
	if n.RigidBody && n.Mass <= 0 {
		n.Mass = 1
	}

	if n.Tag == AgentTag && b.reg != nil {
		if err := b.reg.RegisterAgent(n); err != nil {
			return nil, fmt.Errorf("failed to register agent %s: %w", n.Name, err)
		}
	}

	for _, c := range raw.Get("children").Array() {
		child, err := b.build(int(c.Int()), n.Position)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
