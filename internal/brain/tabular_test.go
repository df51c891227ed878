package brain

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ghostrush/server/internal/grid"
)

func policyJSON(positionKey, sk int32, values [4]float64) []byte {
	f := policyFile{
		Alpha:        0.1,
		Gamma:        0.9,
		TotalActions: 1000,
		Entries: []policyEntry{{
			PositionKey: positionKey,
			ValueTable:  []policyStateRow{{StateKey: sk, Values: values[:]}},
		}},
	}
	raw, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return raw
}

func TestParseTabularPolicy(t *testing.T) {
	Convey("Given a serialized value table", t, func() {
		Convey("When the file is well formed", func() {
			p, err := parseTabularPolicy(policyJSON(42, 7, [4]float64{1, 2, 3, 4}))
			So(err, ShouldBeNil)
			So(p.Positions(), ShouldEqual, 1)
			So(p.TotalActions(), ShouldEqual, 1000)
		})
		Convey("When the entry list is empty", func() {
			_, err := parseTabularPolicy([]byte(`{"alpha":0.1,"gamma":0.9,"entries":[]}`))
			So(err, ShouldNotBeNil)
		})
		Convey("When a value vector is short", func() {
			raw := []byte(`{"entries":[{"positionKey":1,"valueTable":[{"stateKey":2,"values":[1,2,3]}]}]}`)
			_, err := parseTabularPolicy(raw)
			So(err, ShouldNotBeNil)
		})
		Convey("When a position key repeats", func() {
			raw := []byte(`{"entries":[
				{"positionKey":1,"valueTable":[{"stateKey":2,"values":[1,2,3,4]}]},
				{"positionKey":1,"valueTable":[{"stateKey":3,"values":[1,2,3,4]}]}]}`)
			_, err := parseTabularPolicy(raw)
			So(err, ShouldNotBeNil)
		})
		Convey("When the payload is not JSON", func() {
			_, err := parseTabularPolicy([]byte("{"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTabularPolicyDecide(t *testing.T) {
	m := testMaze(t, []string{
		"######",
		"#....#",
		"######",
	}, nil)
	pac := grid.Position{X: 2, Y: 1}
	sk := stateKey(pac, grid.Right)

	Convey("Given a corridor observation", t, func() {
		Convey("The argmax skips walled directions", func() {
			dot := grid.Position{X: 1, Y: 1}
			p, err := parseTabularPolicy(policyJSON(dot.Key(), sk, [4]float64{9, 0, 5, 1}))
			So(err, ShouldBeNil)
			st := &State{
				Maze:        m,
				Pacman:      pac,
				Facing:      grid.Right,
				Dots:        foodMap(dot),
				Pellets:     foodMap(),
				InitialFood: 1,
			}
			dir, err := p.Decide(st)
			So(err, ShouldBeNil)
			// Up scores highest but is a wall; left is the best
			// walkable action.
			So(dir, ShouldEqual, grid.Left)
		})

		Convey("Targets missing from the table contribute nothing", func() {
			known := grid.Position{X: 3, Y: 1}
			p, err := parseTabularPolicy(policyJSON(known.Key(), sk, [4]float64{0, 0, 0, 5}))
			So(err, ShouldBeNil)
			st := &State{
				Maze:        m,
				Pacman:      pac,
				Facing:      grid.Right,
				Dots:        foodMap(grid.Position{X: 1, Y: 1}, known),
				Pellets:     foodMap(),
				InitialFood: 2,
			}
			dir, err := p.Decide(st)
			So(err, ShouldBeNil)
			So(dir, ShouldEqual, grid.Right)
		})

		Convey("Adjacent hostile shaping overrides a mild preference", func() {
			dot := grid.Position{X: 1, Y: 1}
			p, err := parseTabularPolicy(policyJSON(dot.Key(), sk, [4]float64{0, 0, 0, 0.5}))
			So(err, ShouldBeNil)
			st := &State{
				Maze:   m,
				Pacman: pac,
				Facing: grid.Right,
				Ghosts: []GhostObservation{
					{Position: grid.Position{X: 4, Y: 1}, Direction: grid.Left},
				},
				Dots:        foodMap(dot),
				Pellets:     foodMap(),
				InitialFood: 1,
			}
			dir, err := p.Decide(st)
			So(err, ShouldBeNil)
			So(dir, ShouldEqual, grid.Left)
		})

		Convey("A frightened ghost flips from repellent to target", func() {
			ghost := grid.Position{X: 4, Y: 1}
			p, err := parseTabularPolicy(policyJSON(ghost.Key(), sk, [4]float64{0, 0, 0, 1}))
			So(err, ShouldBeNil)
			build := func(frightened bool) *State {
				return &State{
					Maze:   m,
					Pacman: pac,
					Facing: grid.Right,
					Ghosts: []GhostObservation{
						{Position: ghost, Direction: grid.Left, Frightened: frightened},
					},
					Dots:    foodMap(),
					Pellets: foodMap(),
				}
			}
			dir, err := p.Decide(build(false))
			So(err, ShouldBeNil)
			So(dir, ShouldEqual, grid.Left)

			dir, err = p.Decide(build(true))
			So(err, ShouldBeNil)
			So(dir, ShouldEqual, grid.Right)
		})
	})
}
