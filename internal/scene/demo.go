// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scene

import (
	"math"
	"math/rand"
)

const (
	demoTurnDeg = 10
	demoClimbCM = 2
	demoFloorCM = 10
	demoCeilCM  = 500
)

// Demo flies the vehicle in a climbing spiral and drops a random obstacle
// at its altitude on every step.
type Demo struct {
	s    *Scene
	rng  *rand.Rand
	pose Pose
	up   bool
}

func NewDemo(s *Scene, seed int64) *Demo {
	return &Demo{s: s, rng: rand.New(rand.NewSource(seed)), up: true}
}

// Step shows the current pose with a new obstacle and advances the flight.
func (d *Demo) Step() error {
	d.s.SetPose(d.pose)

	half := d.s.Options().MapSizeCM / 2
	ox := math.Trunc(d.rng.Float64()*2*half - half)
	oy := math.Trunc(d.rng.Float64()*2*half - half)
	err := d.s.AddObstacle(ox, oy, d.pose.Z)

	d.pose.Heading = math.Mod(d.pose.Heading+demoTurnDeg, 360)
	if d.up {
		d.pose.Z += demoClimbCM
	} else {
		d.pose.Z -= demoClimbCM
	}
	if d.pose.Z > demoCeilCM {
		d.up = false
	}
	if d.pose.Z < demoFloorCM {
		d.up = true
	}
	return err
}
