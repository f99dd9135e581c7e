package csgo

import (
	"fmt"
	"strings"

	"GameStateServer/internal/service/events"

	"github.com/tidwall/gjson"
)

// Summary is a compact view of one CS:GO state snapshot. Sections the game did
// not send stay at their zero values.
type Summary struct {
	Timestamp  int64
	Map        string
	Mode       string
	MapPhase   string // warmup, live, intermission, gameover
	Round      int
	RoundPhase string // freezetime, live, over
	Bomb       string // planted, exploded, defused
	ScoreCT    int
	ScoreT     int
	Player     PlayerSummary
	Signals    Signals
}

type PlayerSummary struct {
	SteamID      string
	Name         string
	Team         string
	Activity     string
	Health       int
	Armor        int
	Helmet       bool
	Money        int
	Flashed      int
	Burning      int
	RoundKills   int
	Kills        int
	Assists      int
	Deaths       int
	MVPs         int
	Score        int
	ActiveWeapon string
}

type Signals struct {
	LowHP       bool
	Dead        bool
	Flashed     bool
	BombPlanted bool
}

// Summarize extracts the commonly used fields of ev. It never fails: missing or
// mistyped fields read as zero.
func Summarize(ev events.Event) Summary {
	s := Summary{
		Timestamp:  ev.Get("provider.timestamp").Int(),
		Map:        ev.Get("map.name").String(),
		Mode:       ev.Get("map.mode").String(),
		MapPhase:   ev.Get("map.phase").String(),
		Round:      int(ev.Get("map.round").Int()),
		RoundPhase: ev.Get("round.phase").String(),
		Bomb:       ev.Get("round.bomb").String(),
		ScoreCT:    int(ev.Get("map.team_ct.score").Int()),
		ScoreT:     int(ev.Get("map.team_t.score").Int()),
	}

	player := ev.Get("player")
	state := player.Get("state")
	stats := player.Get("match_stats")
	s.Player = PlayerSummary{
		SteamID:    player.Get("steamid").String(),
		Name:       player.Get("name").String(),
		Team:       player.Get("team").String(),
		Activity:   player.Get("activity").String(),
		Health:     int(state.Get("health").Int()),
		Armor:      int(state.Get("armor").Int()),
		Helmet:     state.Get("helmet").Bool(),
		Money:      int(state.Get("money").Int()),
		Flashed:    int(state.Get("flashed").Int()),
		Burning:    int(state.Get("burning").Int()),
		RoundKills: int(state.Get("round_kills").Int()),
		Kills:      int(stats.Get("kills").Int()),
		Assists:    int(stats.Get("assists").Int()),
		Deaths:     int(stats.Get("deaths").Int()),
		MVPs:       int(stats.Get("mvps").Int()),
		Score:      int(stats.Get("score").Int()),
	}
	player.Get("weapons").ForEach(func(_, w gjson.Result) bool {
		if w.Get("state").String() == "active" {
			s.Player.ActiveWeapon = w.Get("name").String()
			return false
		}
		return true
	})

	hasState := state.Get("health").Exists()
	s.Signals = Signals{
		LowHP:       hasState && s.Player.Health > 0 && s.Player.Health <= 30,
		Dead:        hasState && s.Player.Health == 0,
		Flashed:     s.Player.Flashed > 0,
		BombPlanted: s.Bomb == "planted",
	}
	return s
}

// String renders the summary on one line, skipping empty parts.
func (s Summary) String() string {
	var parts []string
	if s.Map != "" {
		m := s.Map
		if s.MapPhase != "" {
			m += " " + s.MapPhase
		}
		parts = append(parts, m, fmt.Sprintf("r%d CT %d:%d T", s.Round, s.ScoreCT, s.ScoreT))
	}
	if s.RoundPhase != "" {
		parts = append(parts, "round="+s.RoundPhase)
	}
	if s.Bomb != "" {
		parts = append(parts, "bomb="+s.Bomb)
	}
	if p := s.Player; p.Name != "" {
		who := p.Name
		if p.Team != "" {
			who += " (" + p.Team + ")"
		}
		parts = append(parts, who,
			fmt.Sprintf("hp=%d ar=%d $%d", p.Health, p.Armor, p.Money),
			fmt.Sprintf("k/a/d=%d/%d/%d", p.Kills, p.Assists, p.Deaths))
		if p.ActiveWeapon != "" {
			parts = append(parts, "weapon="+p.ActiveWeapon)
		}
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " | ")
}

// Diff lists notable transitions from prev to cur in a human readable form.
func Diff(prev, cur Summary) []string {
	var changes []string
	if cur.Map != "" && cur.Map != prev.Map {
		changes = append(changes, "map: "+cur.Map)
	}
	if cur.MapPhase != prev.MapPhase && cur.MapPhase != "" {
		changes = append(changes, fmt.Sprintf("map phase: %s -> %s", orNone(prev.MapPhase), cur.MapPhase))
	}
	if cur.Round != prev.Round {
		changes = append(changes, fmt.Sprintf("round %d", cur.Round))
	}
	if cur.RoundPhase != prev.RoundPhase && cur.RoundPhase != "" {
		changes = append(changes, fmt.Sprintf("round phase: %s -> %s", orNone(prev.RoundPhase), cur.RoundPhase))
	}
	if cur.Bomb != prev.Bomb && cur.Bomb != "" {
		changes = append(changes, "bomb "+cur.Bomb)
	}
	if cur.ScoreCT != prev.ScoreCT || cur.ScoreT != prev.ScoreT {
		changes = append(changes, fmt.Sprintf("score CT %d:%d T", cur.ScoreCT, cur.ScoreT))
	}
	if cur.Signals.Dead && !prev.Signals.Dead && cur.Player.SteamID == prev.Player.SteamID {
		changes = append(changes, fmt.Sprintf("%s died", orNone(cur.Player.Name)))
	}
	return changes
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
