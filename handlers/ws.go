// handlers/ws.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"game-match-system/middleware"
	"game-match-system/physics"
	"game-match-system/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// clientMessage is the wire frame for every client→server message.
type clientMessage struct {
	Type    string          `json:"type"`
	Variant string          `json:"variant,omitempty"`
	Code    string          `json:"code,omitempty"`
	Amount  int64           `json:"amount,omitempty"`
	Proof   string          `json:"lock_proof,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
}

// Client→server message types.
const (
	msgCreateFriendly = "create-friendly"
	msgJoinFriendly   = "join-friendly"
	msgEnqueueQuick   = "enqueue-quick"
	msgCreateStaked   = "create-staked"
	msgJoinStaked     = "join-staked"
	msgSubmitInput    = "submit-input"
	msgPause          = "pause"
	msgResume         = "resume"
	msgForfeit        = "forfeit"
	msgLeave          = "leave"
	msgRejoin         = "rejoin"
)

// SetupRealtimeRoutes mounts the arena websocket. Auth happens in the
// upgrade request via WSAuthMiddleware; everything after is per-session.
func SetupRealtimeRoutes(app *fiber.App, authClient *services.AuthServiceClient,
	conns *services.ConnectionCoordinator, matchmaking *services.MatchmakingService, loops *services.LoopService) {

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/arena", middleware.WSAuthMiddleware(authClient), websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals(string(middleware.UserIDContextKey)).(string)
		username, _ := c.Locals(string(middleware.UsernameContextKey)).(string)
		wallet, _ := c.Locals(string(middleware.WalletContextKey)).(string)
		deviceID, _ := c.Locals(string(middleware.DeviceIDContextKey)).(string)

		sess := conns.Register(c, userID, username, wallet, deviceID)
		defer conns.Unregister(sess)

		// A participant who still occupies a slot in a live match is
		// re-attached immediately, clearing any running grace timer.
		if m := loops.Registry.FindByUser(userID); m != nil {
			conns.BindMatch(sess, m.Code)
			loops.HandleReconnect(m.Code, userID)
			if snap, err := loops.CurrentSnapshot(m.Code); err == nil {
				sess.SendEvent(services.EvStateUpdate, snap)
			}
		}

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				sess.SendEvent(services.EvError, fiber.Map{"error": "malformed message"})
				continue
			}
			if err := dispatch(sess, msg, conns, matchmaking, loops); err != nil {
				sess.SendEvent(services.EvError, fiber.Map{
					"op":    msg.Type,
					"error": errorTag(err),
				})
			}
		}
	}))
}

func dispatch(sess *services.Session, msg clientMessage,
	conns *services.ConnectionCoordinator, matchmaking *services.MatchmakingService, loops *services.LoopService) error {

	switch msg.Type {
	case msgCreateFriendly:
		m, err := matchmaking.CreateFriendly(sess, msg.Variant, msg.Code)
		if err != nil {
			return err
		}
		return sess.SendEvent(services.EvMatchFormed, fiber.Map{"code": m.Code, "variant": m.Variant})

	case msgJoinFriendly:
		_, err := matchmaking.JoinFriendly(sess, msg.Code)
		return err

	case msgEnqueueQuick:
		m, err := matchmaking.EnqueueQuick(sess, msg.Variant)
		if err != nil {
			return err
		}
		return sess.SendEvent(services.EvMatchFormed, fiber.Map{"code": m.Code, "variant": m.Variant})

	case msgCreateStaked:
		m, err := matchmaking.CreateStaked(sess, msg.Variant, msg.Amount, msg.Proof)
		if err != nil {
			return err
		}
		return sess.SendEvent(services.EvMatchFormed, fiber.Map{
			"code": m.Code, "variant": m.Variant, "stake_amount": m.StakeAmount,
		})

	case msgJoinStaked:
		_, err := matchmaking.JoinStaked(sess, msg.Code, msg.Proof)
		return err

	case msgSubmitInput:
		return loops.ApplyInput(sess, sess.MatchCode(), msg.Input)

	case msgPause:
		_, err := loops.Pause(sess.MatchCode(), sess.UserID)
		return err

	case msgResume:
		return loops.Resume(sess.MatchCode(), sess.UserID)

	case msgForfeit:
		return loops.Forfeit(sess.MatchCode(), sess.UserID)

	case msgLeave:
		code := sess.MatchCode()
		if code == "" {
			return nil
		}
		// Leaving a forming match cancels it; leaving a running one is
		// a forfeit with the socket staying open.
		if err := matchmaking.Cancel(sess, code); err != nil && !errors.Is(err, services.ErrNotCreator) {
			return err
		}
		if err := loops.Forfeit(code, sess.UserID); err != nil &&
			!errors.Is(err, services.ErrNotActive) && !errors.Is(err, services.ErrNotFound) {
			return err
		}
		conns.UnbindMatch(sess)
		return nil

	case msgRejoin:
		m, ok := loops.Registry.Get(msg.Code)
		if !ok {
			return services.ErrNotFound
		}
		if !m.HasParticipant(sess.UserID) {
			return services.ErrNotInMatch
		}
		conns.BindMatch(sess, m.Code)
		loops.HandleReconnect(m.Code, sess.UserID)
		snap, err := loops.CurrentSnapshot(m.Code)
		if err != nil {
			return err
		}
		return sess.SendEvent(services.EvStateUpdate, snap)

	default:
		log.Printf("⚠️ [WS] session %s sent unknown op %q", sess.ID, msg.Type)
		return errors.New("unknown message type")
	}
}

// errorTag flattens service and input errors to client-safe strings.
func errorTag(err error) string {
	var inputErr *physics.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Reason
	}
	return err.Error()
}
