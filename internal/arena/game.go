package arena

import (
	"math"
	"math/rand"
	"time"
)

// Game owns a GameState and advances it one tick at a time. It is a pure
// function of (prior state, queued commands, elapsed time, RNG): no
// goroutines, no channels, no I/O. The GameLoop is the only caller.
type Game struct {
	config GameConfig
	state  GameState

	rng *rand.Rand
	now func() time.Time

	nextBulletID uint32
	nextItemID   uint32

	// survivalTimers holds, per living or recently-killed player id, the
	// next instant a survival point may be awarded. Mirrors next_reward_time
	// in spec.md §4.1 phase 11.
	survivalTimers  map[uint32]time.Time
	lastItemSpawnAt time.Time
}

// New constructs a Game. rng and now may be nil, in which case a
// time-seeded RNG and time.Now are used; tests inject both to get
// deterministic, replayable ticks.
func New(config GameConfig, rng *rand.Rand, now func() time.Time) *Game {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	g := &Game{
		config:         config,
		rng:            rng,
		now:            now,
		survivalTimers: make(map[uint32]time.Time),
	}
	g.state = GameState{
		BoundX:     config.BoundX,
		BoundY:     config.BoundY,
		Scoreboard: make(map[uint32]uint32),
	}
	g.lastItemSpawnAt = now()
	return g
}

// Init exists for parity with the component's exposed operation set; the
// Go simulation needs no deferred initialization.
func (g *Game) Init() {}

// Config returns the game's configuration.
func (g *Game) Config() GameConfig { return g.config }

// Snapshot returns an immutable clone of the current GameState, safe to
// hand to any number of concurrent readers.
func (g *Game) Snapshot() GameState { return g.state.Clone() }

// Reset produces a fresh simulation from the stored config and re-adds
// every player id currently present in players or dead. Scores, bullets,
// items, and survival timers are cleared.
func (g *Game) Reset() {
	ids := make([]uint32, 0, len(g.state.Players)+len(g.state.Dead))
	for _, p := range g.state.Players {
		ids = append(ids, p.ID)
	}
	for _, d := range g.state.Dead {
		ids = append(ids, d.Player.ID)
	}

	g.state = GameState{
		BoundX:     g.config.BoundX,
		BoundY:     g.config.BoundY,
		Scoreboard: make(map[uint32]uint32),
	}
	g.survivalTimers = make(map[uint32]time.Time)
	g.nextBulletID = 0
	g.nextItemID = 0
	g.lastItemSpawnAt = g.now()

	for _, id := range ids {
		g.AddPlayer(id)
	}
}

// randomizePosition picks a uniformly random point inside bounds that
// keeps a circle of the given radius fully in bounds.
func (g *Game) randomizePosition(radius float64) (float64, float64) {
	x := radius + g.rng.Float64()*math.Max(0, g.config.BoundX-2*radius)
	y := radius + g.rng.Float64()*math.Max(0, g.config.BoundY-2*radius)
	return x, y
}

func newPlayer(id uint32) PlayerState {
	return PlayerState{
		ID:           id,
		Radius:       DefaultPlayerRadius,
		BulletLimit:  DefaultBulletLimit,
		BulletRadius: DefaultBulletRadius,
		BulletSpeed:  DefaultBulletSpeed,
	}
}

// AddPlayer creates a PlayerState with defaults, randomizes its position,
// appends it to players, and starts its survival timer.
func (g *Game) AddPlayer(id uint32) {
	p := newPlayer(id)
	p.X, p.Y = g.randomizePosition(p.Radius)
	g.state.Players = append(g.state.Players, p)
	g.survivalTimers[id] = g.now().Add(SurvivalTimeout)
}

// PlayerLeft removes id from players, dead, scoreboard, and survival
// timers. Idempotent.
func (g *Game) PlayerLeft(id uint32) {
	g.state.Players = removePlayerByID(g.state.Players, id)
	g.state.Dead = removeDeadByID(g.state.Dead, id)
	delete(g.state.Scoreboard, id)
	delete(g.survivalTimers, id)
}

func removePlayerByID(players []PlayerState, id uint32) []PlayerState {
	n := 0
	for _, p := range players {
		if p.ID != id {
			players[n] = p
			n++
		}
	}
	return players[:n]
}

func removeDeadByID(dead []DeadPlayer, id uint32) []DeadPlayer {
	n := 0
	for _, d := range dead {
		if d.Player.ID != id {
			dead[n] = d
			n++
		}
	}
	return dead[:n]
}

// HandleCommand applies a decoded command from a player, if that player is
// currently alive. Dead or unknown player ids are silently dropped.
func (g *Game) HandleCommand(id uint32, cmd Command) {
	idx := -1
	for i := range g.state.Players {
		if g.state.Players[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	player := &g.state.Players[idx]

	switch cmd.Kind {
	case CommandRotate:
		player.Angle = cmd.Value
	case CommandThrottle:
		player.Throttle = clamp(cmd.Value, 0, 1)
	case CommandFire:
		active := 0
		for _, b := range g.state.Bullets {
			if b.PlayerID == player.ID {
				active++
			}
		}
		if active < player.BulletLimit {
			bulletID := g.nextBulletID
			g.nextBulletID++ // wraps naturally on uint32 overflow
			dx, dy := angleVector(player.Angle)
			g.state.Bullets = append(g.state.Bullets, BulletState{
				ID:       bulletID,
				PlayerID: player.ID,
				Angle:    player.Angle,
				X:        player.X + dx*BulletSpawnOffset,
				Y:        player.Y + dy*BulletSpawnOffset,
				Radius:   player.BulletRadius,
				Speed:    player.BulletSpeed,
			})
		}
	}
}

func angleVector(angle float64) (float64, float64) {
	return math.Cos(angle), math.Sin(angle)
}

// Tick advances the simulation by dt seconds, running the eleven phases in
// the contractually significant order described in spec.md §4.1.
func (g *Game) Tick(dt float64) {
	now := g.now()
	g.state.Kills = g.state.Kills[:0]

	// 1. Revive dead.
	kept := g.state.Dead[:0:0]
	for _, d := range g.state.Dead {
		if d.RespawnAt.Compare(now) <= 0 {
			g.state.Players = append(g.state.Players, d.Player)
		} else {
			kept = append(kept, d)
		}
	}
	g.state.Dead = kept

	// 2. Item spawn.
	if now.Sub(g.lastItemSpawnAt) >= ItemSpawnTime && len(g.state.Items) < MaxConcurrentItems {
		x, y := g.randomizePosition(itemRadius)
		kind := g.config.ItemCatalog[g.rng.Intn(len(g.config.ItemCatalog))]
		itemID := g.nextItemID
		g.nextItemID++
		g.state.Items = append(g.state.Items, Item{ID: itemID, X: x, Y: y, Radius: itemRadius, Kind: kind})
		g.lastItemSpawnAt = now
	}

	// 3. Bullet integration.
	for i := range g.state.Bullets {
		b := &g.state.Bullets[i]
		dx, dy := angleVector(b.Angle)
		b.X += dx * b.Speed * dt
		b.Y += dy * b.Speed * dt
	}

	// 4. Player integration.
	for i := range g.state.Players {
		p := &g.state.Players[i]
		dx, dy := angleVector(p.Angle)
		speed := p.speed(g.config.PlayerBaseSpeed)
		p.X += dx * speed * p.Throttle * dt
		p.Y += dy * speed * p.Throttle * dt
		p.X = clamp(p.X, p.Radius, g.config.BoundX-p.Radius)
		p.Y = clamp(p.Y, p.Radius, g.config.BoundY-p.Radius)
	}

	// 5. Bullet out-of-bounds cull.
	g.state.Bullets = filterBullets(g.state.Bullets, func(b BulletState) bool {
		return b.X > -b.Radius && b.X < g.config.BoundX+b.Radius &&
			b.Y > -b.Radius && b.Y < g.config.BoundY+b.Radius
	})

	// 6. Bullet-bullet annihilation.
	colliding := make(map[uint32]bool)
	for i, b := range g.state.Bullets {
		for j, other := range g.state.Bullets {
			if i == j {
				continue
			}
			if circlesCollide(b.X, b.Y, b.Radius, other.X, other.Y, other.Radius) {
				colliding[b.ID] = true
				colliding[other.ID] = true
			}
		}
	}
	g.state.Bullets = filterBullets(g.state.Bullets, func(b BulletState) bool {
		return !colliding[b.ID]
	})

	// 7. Player-player collision.
	collidingPlayers := make(map[uint32]bool)
	for i, p := range g.state.Players {
		for j, other := range g.state.Players {
			if i == j {
				continue
			}
			if circlesCollide(p.X, p.Y, p.Radius, other.X, other.Y, other.Radius) {
				collidingPlayers[p.ID] = true
				collidingPlayers[other.ID] = true
			}
		}
	}
	g.state.Players = g.extractPlayers(collidingPlayers, now, nil)

	// 8. Bullet-player hits.
	var kills []uint32 // shooter ids, one entry per kill
	usedBullets := make(map[uint32]bool)
	for bi := range g.state.Bullets {
		bullet := g.state.Bullets[bi]
		victims := make(map[uint32]bool)
		for _, p := range g.state.Players {
			if p.ID == bullet.PlayerID {
				continue
			}
			if circlesCollide(p.X, p.Y, p.Radius, bullet.X, bullet.Y, bullet.Radius) {
				victims[p.ID] = true
			}
		}
		if len(victims) == 0 {
			continue
		}
		usedBullets[bullet.ID] = true
		for victimID := range victims {
			kills = append(kills, bullet.PlayerID)
			g.state.Kills = append(g.state.Kills, KillEvent{KillerID: bullet.PlayerID, VictimID: victimID})
		}
		g.state.Players = g.extractPlayers(victims, now, func(id uint32) {
			g.survivalTimers[id] = now.Add(SurvivalTimeout)
		})
	}
	g.state.Bullets = filterBullets(g.state.Bullets, func(b BulletState) bool { return !usedBullets[b.ID] })

	// 9. Item pickups.
	usedItems := make(map[uint32]bool)
	for ii := range g.state.Items {
		item := g.state.Items[ii]
		if usedItems[item.ID] {
			continue
		}
		for pi := range g.state.Players {
			p := &g.state.Players[pi]
			if circlesCollide(p.X, p.Y, p.Radius, item.X, item.Y, item.Radius) {
				item.Kind.applyTo(p)
				usedItems[item.ID] = true
			}
		}
	}
	g.state.Items = filterItems(g.state.Items, func(i Item) bool { return !usedItems[i.ID] })

	// 10. Scoreboard: kill credit.
	for _, shooter := range kills {
		g.state.Scoreboard[shooter]++
	}

	// 11. Scoreboard: survival reward.
	for id, nextReward := range g.survivalTimers {
		if nextReward.Compare(now) <= 0 {
			if len(g.state.Players) > 1 {
				g.state.Scoreboard[id]++
			}
			g.survivalTimers[id] = now.Add(SurvivalPointInterval)
		}
	}
}

// extractPlayers removes every player whose id is in toKill from
// state.Players, re-randomizes their position, and pushes a corpse with a
// 3s respawn timer. onKilled, if non-nil, runs once per extracted id.
func (g *Game) extractPlayers(toKill map[uint32]bool, now time.Time, onKilled func(id uint32)) []PlayerState {
	kept := g.state.Players[:0:0]
	for _, p := range g.state.Players {
		if !toKill[p.ID] {
			kept = append(kept, p)
			continue
		}
		p.X, p.Y = g.randomizePosition(p.Radius)
		g.state.Dead = append(g.state.Dead, DeadPlayer{Player: p, RespawnAt: now.Add(DeadPunish)})
		if onKilled != nil {
			onKilled(p.ID)
		}
	}
	return kept
}

func filterBullets(bullets []BulletState, keep func(BulletState) bool) []BulletState {
	n := 0
	for _, b := range bullets {
		if keep(b) {
			bullets[n] = b
			n++
		}
	}
	return bullets[:n]
}

func filterItems(items []Item, keep func(Item) bool) []Item {
	n := 0
	for _, it := range items {
		if keep(it) {
			items[n] = it
			n++
		}
	}
	return items[:n]
}
