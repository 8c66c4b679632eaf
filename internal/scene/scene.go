// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scene keeps a 3D map of the vehicle and the obstacles around it
// for the web viewer. Distances are in cm. The vehicle is drawn as a
// pyramid pointing along its heading; obstacles are cubes.
package scene

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose places the vehicle: X left/right, Y forward/back, Z up/down, and
// Heading in degrees clockwise from +Y.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

// Point is a vertex as [x, y, z].
type Point [3]float64

// Face is one polygon of a solid.
type Face []Point

type Options struct {
	MapSizeCM      float64
	ObstacleSizeCM float64
	VehicleSizeCM  float64
	// Oldest obstacles are dropped beyond this count.
	MaxObstacles int
}

func DefaultOptions() Options {
	return Options{
		MapSizeCM:      1000,
		ObstacleSizeCM: 10,
		VehicleSizeCM:  25,
		MaxObstacles:   1000,
	}
}

// Scene is safe for concurrent use.
type Scene struct {
	opts Options

	mu        sync.Mutex
	pose      Pose
	obstacles []r3.Vec
}

// New builds an empty scene; zero options take the defaults.
func New(opts Options) *Scene {
	def := DefaultOptions()
	if opts.MapSizeCM <= 0 {
		opts.MapSizeCM = def.MapSizeCM
	}
	if opts.ObstacleSizeCM <= 0 {
		opts.ObstacleSizeCM = def.ObstacleSizeCM
	}
	if opts.VehicleSizeCM <= 0 {
		opts.VehicleSizeCM = def.VehicleSizeCM
	}
	if opts.MaxObstacles <= 0 {
		opts.MaxObstacles = def.MaxObstacles
	}
	return &Scene{opts: opts}
}

func (s *Scene) Options() Options { return s.opts }

func (s *Scene) SetPose(p Pose) {
	s.mu.Lock()
	s.pose = p
	s.mu.Unlock()
}

// SetHeading turns the vehicle in place.
func (s *Scene) SetHeading(deg float64) {
	s.mu.Lock()
	s.pose.Heading = deg
	s.mu.Unlock()
}

func (s *Scene) Pose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// AddObstacle adds a cube whose lowest corner is (x, y, z). The corner must
// lie inside the map: |x|, |y| <= size/2 and 0 <= z <= size.
func (s *Scene) AddObstacle(x, y, z float64) error {
	half := s.opts.MapSizeCM / 2
	for _, v := range []float64{x, y, z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("obstacle (%v, %v, %v) is not a finite point", x, y, z)
		}
	}
	if math.Abs(x) > half || math.Abs(y) > half || z < 0 || z > s.opts.MapSizeCM {
		return errors.Errorf("obstacle (%v, %v, %v) is outside the %v cm map", x, y, z, s.opts.MapSizeCM)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacles = append(s.obstacles, r3.Vec{X: x, Y: y, Z: z})
	if over := len(s.obstacles) - s.opts.MaxObstacles; over > 0 {
		s.obstacles = append(s.obstacles[:0], s.obstacles[over:]...)
	}
	return nil
}

func (s *Scene) Obstacles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.obstacles)
}

// Reset removes every obstacle and puts the vehicle back at the origin.
func (s *Scene) Reset() {
	s.mu.Lock()
	s.pose = Pose{}
	s.obstacles = nil
	s.mu.Unlock()
}

// View is the scene rendered to polygons, ready for a 3D plot.
type View struct {
	MapSizeCM float64  `json:"map_size_cm"`
	Pose      Pose     `json:"pose"`
	Vehicle   []Face   `json:"vehicle"`
	Obstacles [][]Face `json:"obstacles"`
}

func (s *Scene) View() View {
	s.mu.Lock()
	pose := s.pose
	obstacles := append([]r3.Vec(nil), s.obstacles...)
	s.mu.Unlock()

	v := View{
		MapSizeCM: s.opts.MapSizeCM,
		Pose:      pose,
		Vehicle:   VehicleFaces(pose, s.opts.VehicleSizeCM),
		Obstacles: make([][]Face, 0, len(obstacles)),
	}
	for _, o := range obstacles {
		v.Obstacles = append(v.Obstacles, CubeFaces(o, s.opts.ObstacleSizeCM))
	}
	return v
}

// VehicleFaces returns the five faces of a pyramid size cm long, half as
// wide and a third as tall. The rear face is centred on the pose and the
// apex points along the heading.
func VehicleFaces(p Pose, size float64) []Face {
	l, w, h := size, size/2, size/3
	rot := r3.NewRotation(-p.Heading*math.Pi/180, r3.Vec{Z: 1})
	at := r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	place := func(v r3.Vec) Point {
		v = r3.Add(rot.Rotate(v), at)
		return Point{v.X, v.Y, v.Z}
	}
	a := place(r3.Vec{X: -w / 2, Y: -l / 2, Z: -h / 2})
	b := place(r3.Vec{X: w / 2, Y: -l / 2, Z: -h / 2})
	c := place(r3.Vec{X: w / 2, Y: -l / 2, Z: h / 2})
	d := place(r3.Vec{X: -w / 2, Y: -l / 2, Z: h / 2})
	e := place(r3.Vec{Y: l / 2})
	return []Face{
		{a, b, c, d},
		{b, c, e},
		{c, d, e},
		{a, d, e},
		{a, b, e},
	}
}

// CubeFaces returns the six faces of a cube with lowest corner origin.
func CubeFaces(origin r3.Vec, size float64) []Face {
	box := r3.NewBox(origin.X, origin.Y, origin.Z, origin.X+size, origin.Y+size, origin.Z+size)
	lo, hi := box.Min, box.Max
	a := Point{lo.X, lo.Y, lo.Z}
	b := Point{hi.X, lo.Y, lo.Z}
	c := Point{hi.X, hi.Y, lo.Z}
	d := Point{lo.X, hi.Y, lo.Z}
	e := Point{lo.X, lo.Y, hi.Z}
	f := Point{hi.X, lo.Y, hi.Z}
	g := Point{hi.X, hi.Y, hi.Z}
	h := Point{lo.X, hi.Y, hi.Z}
	return []Face{
		{a, b, c, d},
		{e, f, g, h},
		{f, g, c, b},
		{e, h, d, a},
		{e, f, b, a},
		{h, g, c, d},
	}
}
