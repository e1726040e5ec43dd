package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"arenakit/core"
)

// DefaultMinPlayers is the minimum roster for starting a game.
const DefaultMinPlayers = 2

// GameService manages multiplayer lobbies and their chat logs.
type GameService struct {
	store GameStore
	bus   *EventBus
	locks *KeyLock
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// NewGameService returns a service over store that publishes on bus.
func NewGameService(store GameStore, bus *EventBus, opts ...ServiceOption) *GameService {
	if store == nil || bus == nil {
		panic("NewGameService requires non-nil store and bus")
	}
	cfg := newServiceConfig(opts)
	return &GameService{
		store: store,
		bus:   bus,
		locks: cfg.locks,
		log:   cfg.logger.With("component", "games"),
		now:   cfg.now,
		newID: cfg.newID,
	}
}

// CreateGame opens a waiting lobby with host as its only participant.
func (g *GameService) CreateGame(ctx context.Context, name, description string, maxPlayers int, host core.Participant) (core.Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Game{}, fmt.Errorf("%w: game name cannot be empty", core.ErrInvalidArgument)
	}
	if maxPlayers < DefaultMinPlayers {
		return core.Game{}, fmt.Errorf("%w: max players must be >= %d, got %d", core.ErrInvalidArgument, DefaultMinPlayers, maxPlayers)
	}
	host.ID = core.CanonicalPlayerID(host.ID)
	if host.ID == "" {
		return core.Game{}, fmt.Errorf("%w: host cannot be empty", core.ErrInvalidArgument)
	}
	if err := checkCtx(ctx); err != nil {
		return core.Game{}, err
	}
	game := core.Game{
		ID:            core.GameID(g.newID()),
		Name:          name,
		Description:   description,
		MaxPlayers:    maxPlayers,
		MinPlayers:    DefaultMinPlayers,
		ActivePlayers: 1,
		Status:        core.GameWaiting,
		HostID:        host.ID,
		Players:       []core.Participant{host},
		CreatedAt:     g.now(),
	}
	if err := g.store.InsertGame(ctx, game); err != nil {
		return core.Game{}, err
	}
	g.log.Info("game created", "game_id", game.ID, "host", host.ID, "max_players", maxPlayers)
	g.publishGame(ctx, game.ID, &game)
	return game, nil
}

// JoinGame adds p to a waiting game that has room.
func (g *GameService) JoinGame(ctx context.Context, id core.GameID, p core.Participant) (core.Game, error) {
	p.ID = core.CanonicalPlayerID(p.ID)
	return g.mutate(ctx, id, "join", func(game *core.Game) (string, error) {
		if game.Status != core.GameWaiting {
			return "", fmt.Errorf("%w: game %s is %s", core.ErrInvalidState, id, game.Status)
		}
		if game.ActivePlayers >= game.MaxPlayers {
			return "", fmt.Errorf("%w: game %s has %d/%d players", core.ErrCapacity, id, game.ActivePlayers, game.MaxPlayers)
		}
		if game.HasPlayer(p.ID) {
			return "", fmt.Errorf("%w: player %s already in game %s", core.ErrAlreadyExists, p.ID, id)
		}
		game.Players = append(game.Players, p)
		game.ActivePlayers = len(game.Players)
		return p.Username + " joined the game", nil
	})
}

// StartGame moves a waiting game with enough players to in_progress.
func (g *GameService) StartGame(ctx context.Context, id core.GameID) (core.Game, error) {
	return g.mutate(ctx, id, "start", func(game *core.Game) (string, error) {
		if game.Status != core.GameWaiting {
			return "", fmt.Errorf("%w: cannot start game %s from %s", core.ErrInvalidState, id, game.Status)
		}
		if game.ActivePlayers < game.MinPlayers {
			return "", fmt.Errorf("%w: game %s has %d of %d required players", core.ErrInsufficientPlayers, id, game.ActivePlayers, game.MinPlayers)
		}
		game.Status = core.GameInProgress
		return "Game started!", nil
	})
}

// FinishGame closes an in-progress game.
func (g *GameService) FinishGame(ctx context.Context, id core.GameID) (core.Game, error) {
	return g.mutate(ctx, id, "finish", func(game *core.Game) (string, error) {
		if game.Status != core.GameInProgress {
			return "", fmt.Errorf("%w: cannot finish game %s from %s", core.ErrInvalidState, id, game.Status)
		}
		game.Status = core.GameFinished
		return "Game finished", nil
	})
}

// errGameEmptied marks a leave that removed the last participant.
var errGameEmptied = errors.New("game emptied")

// LeaveGame removes a participant, handing the host role to the first
// remaining player. The game is deleted once nobody is left, in which case
// the returned game has no players and deleted is true.
func (g *GameService) LeaveGame(ctx context.Context, id core.GameID, player core.PlayerID) (game core.Game, deleted bool, err error) {
	player = core.CanonicalPlayerID(player)
	err = g.locks.Do(ctx, func() error {
		cur, err := g.store.GetGame(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == core.GameFinished {
			return fmt.Errorf("%w: game %s is finished", core.ErrInvalidState, id)
		}
		var leaving core.Participant
		for _, p := range cur.Players {
			if p.ID == player {
				leaving = p
			}
		}
		rest, ok := core.RemoveParticipant(cur.Players, player)
		if !ok {
			return fmt.Errorf("%w: player %s not in game %s", core.ErrNotFound, player, id)
		}
		cur.Players = rest
		cur.ActivePlayers = len(rest)
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if len(rest) == 0 {
			if err := g.store.DeleteGame(ctx, id); err != nil {
				return err
			}
			game = cur
			return errGameEmptied
		}
		if cur.HostID == player {
			cur.HostID = rest[0].ID
		}
		if err := g.store.PutGame(ctx, cur, g.systemMessage(id, leaving.Username+" left the game")); err != nil {
			return err
		}
		game = cur
		return nil
	}, gameKey(id))
	switch {
	case errors.Is(err, errGameEmptied):
		g.log.Info("game deleted", "game_id", id, "last_player", player)
		g.publishGame(ctx, id, nil)
		return game, true, nil
	case err != nil:
		g.log.Debug("game mutation rejected", "op", "leave", "game_id", id, "error", err)
		return core.Game{}, false, err
	}
	g.log.Info("game updated", "op", "leave", "game_id", id, "host", game.HostID, "players", game.ActivePlayers)
	g.publishGame(ctx, id, &game)
	g.publishChat(ctx, id)
	return game, false, nil
}

// mutate applies fn under the game lock, saves the game and appends the
// system message fn returns.
func (g *GameService) mutate(ctx context.Context, id core.GameID, op string, fn func(*core.Game) (string, error)) (core.Game, error) {
	var out core.Game
	err := g.locks.Do(ctx, func() error {
		game, err := g.store.GetGame(ctx, id)
		if err != nil {
			return err
		}
		note, err := fn(&game)
		if err != nil {
			return err
		}
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := g.store.PutGame(ctx, game, g.systemMessage(id, note)); err != nil {
			return err
		}
		out = game
		return nil
	}, gameKey(id))
	if err != nil {
		g.log.Debug("game mutation rejected", "op", op, "game_id", id, "error", err)
		return core.Game{}, err
	}
	g.log.Info("game updated", "op", op, "game_id", id, "status", out.Status, "players", out.ActivePlayers)
	g.publishGame(ctx, id, &out)
	g.publishChat(ctx, id)
	return out, nil
}

// SendChatMessage appends a text message from a participant.
func (g *GameService) SendChatMessage(ctx context.Context, id core.GameID, player core.PlayerID, text string) (core.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.ChatMessage{}, fmt.Errorf("%w: empty chat message", core.ErrInvalidArgument)
	}
	player = core.CanonicalPlayerID(player)
	var msg core.ChatMessage
	err := g.locks.Do(ctx, func() error {
		game, err := g.store.GetGame(ctx, id)
		if err != nil {
			return err
		}
		var sender *core.Participant
		for i := range game.Players {
			if game.Players[i].ID == player {
				sender = &game.Players[i]
			}
		}
		if sender == nil {
			return fmt.Errorf("%w: player %s not in game %s", core.ErrNotFound, player, id)
		}
		msg = core.ChatMessage{
			ID:         g.newID(),
			GameID:     id,
			PlayerID:   sender.ID,
			PlayerName: sender.Username,
			Message:    text,
			Time:       g.now(),
			Type:       core.ChatText,
		}
		return g.store.AppendChat(ctx, id, msg)
	}, gameKey(id))
	if err != nil {
		return core.ChatMessage{}, err
	}
	g.publishChat(ctx, id)
	return msg, nil
}

// PostGameEvent records an in-game event in the chat log.
func (g *GameService) PostGameEvent(ctx context.Context, id core.GameID, text string) (core.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.ChatMessage{}, fmt.Errorf("%w: empty game event", core.ErrInvalidArgument)
	}
	msg := g.systemMessage(id, "Game event: "+text)
	msg.Type = core.ChatGameEvent
	err := g.locks.Do(ctx, func() error {
		return g.store.AppendChat(ctx, id, msg)
	}, gameKey(id))
	if err != nil {
		return core.ChatMessage{}, err
	}
	g.publishChat(ctx, id)
	return msg, nil
}

// ChatMessages returns the chat log in send order.
func (g *GameService) ChatMessages(ctx context.Context, id core.GameID) ([]core.ChatMessage, error) {
	return g.store.Chat(ctx, id)
}

// GetGame returns a copy of one game.
func (g *GameService) GetGame(ctx context.Context, id core.GameID) (core.Game, error) {
	return g.store.GetGame(ctx, id)
}

// ListGames returns every live game, newest first.
func (g *GameService) ListGames(ctx context.Context) ([]core.Game, error) {
	return g.store.ListGames(ctx)
}

// ListOpenGames returns games still accepting players.
func (g *GameService) ListOpenGames(ctx context.Context) ([]core.Game, error) {
	all, err := g.store.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Game, 0, len(all))
	for _, game := range all {
		if game.Status == core.GameWaiting {
			out = append(out, game)
		}
	}
	return out, nil
}

func (g *GameService) systemMessage(id core.GameID, text string) core.ChatMessage {
	return core.ChatMessage{
		ID:         g.newID(),
		GameID:     id,
		PlayerID:   core.SystemPlayer,
		PlayerName: "System",
		Message:    text,
		Time:       g.now(),
		Type:       core.ChatSystem,
	}
}

func (g *GameService) publishGame(ctx context.Context, id core.GameID, game *core.Game) {
	all, err := g.store.ListGames(ctx)
	if err != nil {
		g.log.Warn("game snapshot failed", "error", err)
		return
	}
	g.bus.Publish(ctx, core.NewGamesUpdated(id, game, all))
}

func (g *GameService) publishChat(ctx context.Context, id core.GameID) {
	chat, err := g.store.Chat(ctx, id)
	if err != nil {
		// the game may have been deleted since the mutation
		return
	}
	g.bus.Publish(ctx, core.NewChatUpdated(id, chat))
}
