package splitsteal

import (
	"errors"
	"sync"
	"time"

	"guildwarden/internal/storage"

	"github.com/google/uuid"
)

type Choice string

const (
	Split Choice = "split"
	Steal Choice = "steal"
)

func ParseChoice(value string) (Choice, bool) {
	switch Choice(value) {
	case Split, Steal:
		return Choice(value), true
	default:
		return "", false
	}
}

type Outcome string

const (
	BothSplit Outcome = "split"
	Stolen    Outcome = "stolen"
	NobodyWon Outcome = "nobody"
)

var (
	ErrSamePlayer   = errors.New("players must be two different members")
	ErrUnknownGame  = errors.New("game not found")
	ErrNotPlayer    = errors.New("you are not part of this game")
	ErrAlreadyChose = errors.New("you already decided")
	ErrBadChoice    = errors.New("invalid choice")
)

type Game struct {
	ID        string
	GuildID   string
	ChannelID string
	HostID    string
	Prize     string
	Players   [2]string
	MessageID string
	CreatedAt time.Time
	choices   [2]Choice
}

// Decided reports which players have already chosen.
func (g Game) Decided() [2]bool {
	return [2]bool{g.choices[0] != "", g.choices[1] != ""}
}

type Resolution struct {
	Game    Game
	Choices [2]Choice
	Outcome Outcome
	Winners []string
}

// Resolve applies the payoff matrix to the two players' choices.
func Resolve(players [2]string, a, b Choice) (Outcome, []string) {
	switch {
	case a == Split && b == Split:
		return BothSplit, []string{players[0], players[1]}
	case a == Steal && b == Split:
		return Stolen, []string{players[0]}
	case a == Split && b == Steal:
		return Stolen, []string{players[1]}
	default:
		return NobodyWon, nil
	}
}

func (r Resolution) Record() storage.SplitStealRecord {
	return storage.SplitStealRecord{
		ID:         r.Game.ID,
		GuildID:    r.Game.GuildID,
		ChannelID:  r.Game.ChannelID,
		HostID:     r.Game.HostID,
		PlayerOne:  r.Game.Players[0],
		PlayerTwo:  r.Game.Players[1],
		ChoiceOne:  string(r.Choices[0]),
		ChoiceTwo:  string(r.Choices[1]),
		Prize:      r.Game.Prize,
		Result:     string(r.Outcome),
		WinnerIDs:  r.Winners,
		ResolvedAt: time.Now(),
	}
}

// Registry holds games that are waiting for choices.
type Registry struct {
	mu    sync.Mutex
	games map[string]*Game
	newID func() string
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]*Game),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

func (r *Registry) Start(guildID, channelID, hostID, playerOne, playerTwo, prize string) (Game, error) {
	if playerOne == "" || playerTwo == "" || playerOne == playerTwo {
		return Game{}, ErrSamePlayer
	}
	g := &Game{
		ID:        r.newID(),
		GuildID:   guildID,
		ChannelID: channelID,
		HostID:    hostID,
		Prize:     prize,
		Players:   [2]string{playerOne, playerTwo},
		CreatedAt: r.now(),
	}
	r.mu.Lock()
	r.games[g.ID] = g
	r.mu.Unlock()
	return *g, nil
}

func (r *Registry) SetMessage(gameID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.games[gameID]; ok {
		g.MessageID = messageID
	}
}

// Cancel drops a game that never made it onto the channel.
func (r *Registry) Cancel(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// Expire drops games started more than maxAge ago and returns how many were
// removed.
func (r *Registry) Expire(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, g := range r.games {
		if g.CreatedAt.Before(cutoff) {
			delete(r.games, id)
			removed++
		}
	}
	return removed
}

// Choose records a player's single choice. Once both players have chosen the
// game is removed and its resolution is returned.
func (r *Registry) Choose(gameID, userID string, choice Choice) (Game, *Resolution, error) {
	if choice != Split && choice != Steal {
		return Game{}, nil, ErrBadChoice
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[gameID]
	if !ok {
		return Game{}, nil, ErrUnknownGame
	}
	slot := -1
	for i, p := range g.Players {
		if p == userID {
			slot = i
		}
	}
	if slot < 0 {
		return Game{}, nil, ErrNotPlayer
	}
	if g.choices[slot] != "" {
		return Game{}, nil, ErrAlreadyChose
	}
	g.choices[slot] = choice

	if g.choices[0] == "" || g.choices[1] == "" {
		return *g, nil, nil
	}

	delete(r.games, gameID)
	outcome, winners := Resolve(g.Players, g.choices[0], g.choices[1])
	return *g, &Resolution{Game: *g, Choices: g.choices, Outcome: outcome, Winners: winners}, nil
}
