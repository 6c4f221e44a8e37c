package anim

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/scene"
)

// LoopMode controls what happens when an action reaches the clip end.
type LoopMode int

const (
	LoopRepeat   LoopMode = iota // Wrap to the start
	LoopOnce                     // Hold the last frame and stop
	LoopPingPong                 // Alternate direction at each end
)

// Mixer plays at most one clip on the subtree under its root.
type Mixer struct {
	root      *scene.Node
	exact     map[string]*scene.Node
	canonical map[string]*scene.Node
	action    *Action
}

// NewMixer creates a mixer bound to root. Track targets resolve by exact
// node name within the subtree. When root is a skinned mesh, they also
// resolve against its skin joints, where names are compared after dropping
// exporter prefixes such as "mixamorig:" or "Armature|".
func NewMixer(root *scene.Node) *Mixer {
	m := &Mixer{
		root:  root,
		exact: make(map[string]*scene.Node),
	}
	root.Traverse(func(n *scene.Node) {
		if _, dup := m.exact[n.Name]; !dup && n.Name != "" {
			m.exact[n.Name] = n
		}
	})

	if root.IsSkinnedMesh() && root.Skin != nil {
		m.canonical = make(map[string]*scene.Node)
		for _, j := range root.Skin.Joints {
			if _, dup := m.exact[j.Name]; !dup && j.Name != "" {
				m.exact[j.Name] = j
			}
			key := canonicalName(j.Name)
			if _, dup := m.canonical[key]; !dup && key != "" {
				m.canonical[key] = j
			}
		}
	}
	return m
}

// Root returns the node the mixer is bound to.
func (m *Mixer) Root() *scene.Node {
	return m.root
}

// Action returns the active action, or nil.
func (m *Mixer) Action() *Action {
	return m.action
}

// Bind resolves every track of clip against the mixer root and makes the
// resulting action the mixer's only action. On error the previous action is
// left untouched.
func (m *Mixer) Bind(clip *Clip) (*Action, error) {
	if clip == nil {
		return nil, ErrEmptyClip
	}
	if err := clip.Validate(); err != nil {
		return nil, err
	}

	targets := make([]*scene.Node, len(clip.Tracks))
	var missing []string
	for i, t := range clip.Tracks {
		n := m.resolve(t.Node)
		if n == nil {
			missing = append(missing, t.Node)
			continue
		}
		targets[i] = n
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w under %q: %s", ErrUnresolvedTrack, m.root.Name, strings.Join(missing, ", "))
	}

	m.action = &Action{clip: clip, targets: targets, forward: true}
	return m.action, nil
}

func (m *Mixer) resolve(name string) *scene.Node {
	if n, ok := m.exact[name]; ok {
		return n
	}
	if m.canonical != nil {
		return m.canonical[canonicalName(name)]
	}
	return nil
}

// Update advances the active action by dt seconds and poses its targets.
func (m *Mixer) Update(dt float64) {
	if m.action == nil || !m.action.running {
		return
	}
	m.action.advance(dt)
	m.action.apply()
}

// Action is a clip bound to concrete nodes, with its own playback clock.
type Action struct {
	clip    *Clip
	targets []*scene.Node
	Loop    LoopMode
	time    float64
	running bool
	forward bool
}

// Clip returns the clip this action plays.
func (a *Action) Clip() *Clip {
	return a.clip
}

// Time returns the local playback time in seconds.
func (a *Action) Time() float64 {
	return a.time
}

// IsRunning reports whether the action advances on Update.
func (a *Action) IsRunning() bool {
	return a.running
}

// Reset rewinds the action to the clip start.
func (a *Action) Reset() *Action {
	a.time = 0
	a.forward = true
	return a
}

// Play starts the action and applies its current pose.
func (a *Action) Play() *Action {
	a.running = true
	a.apply()
	return a
}

// Stop halts the action at its current pose.
func (a *Action) Stop() {
	a.running = false
}

func (a *Action) advance(dt float64) {
	d := a.clip.Duration
	if d <= 0 {
		return
	}

	switch a.Loop {
	case LoopOnce:
		a.time = math.Min(a.time+dt, d)
		if a.time >= d {
			a.running = false
		}
	case LoopPingPong:
		if !a.forward {
			dt = -dt
		}
		t := a.time + dt
		for t > d || t < 0 {
			if t > d {
				t = 2*d - t
			} else {
				t = -t
			}
			a.forward = !a.forward
		}
		a.time = t
	default:
		a.time = math.Mod(a.time+dt, d)
		if a.time < 0 {
			a.time += d
		}
	}
}

func (a *Action) apply() {
	for i, t := range a.clip.Tracks {
		n := a.targets[i]
		v := t.Sample(a.time)
		switch t.Path {
		case PathTranslation:
			n.Position = math3d.V3(v[0], v[1], v[2])
		case PathRotation:
			n.Rotation = toQuat(v).Normalize()
		case PathScale:
			n.Scale = math3d.V3(v[0], v[1], v[2])
		}
	}
}

// canonicalName reduces a bone name to lowercase alphanumerics after the
// last namespace separator.
func canonicalName(name string) string {
	if i := strings.LastIndexAny(name, ":|"); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
