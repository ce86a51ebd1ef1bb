package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lettuce/party-app/internal/messaging"
	"github.com/lettuce/party-app/internal/presence"
	"github.com/lettuce/party-app/internal/protocol"
	"github.com/lettuce/party-app/internal/ratelimit"
	"github.com/lettuce/party-app/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsConfig.Name = "partylink-gateway"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	serverName, _ := os.Hostname()
	if v := os.Getenv("SERVER_NAME"); v != "" {
		serverName = v
	}
	if serverName == "" {
		serverName = "gateway-1"
	}

	presenceStore, err := presence.NewStore(redisAddr, serverName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	limiter := ratelimit.NewLimiter(presenceStore.Client())

	log.Printf("PartyLink gateway starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  server_name:     %s", serverName)

	// Declare server early so closures can capture it.
	var server *ws.Server

	// subscribeToEvent wires the three realtime feeds for a session that
	// entered an event room, forwarding each NATS payload to the client.
	subscribeToEvent := func(sid, eventID string) {
		err := natsClient.SubscribeAttendeeChanges(eventID, sid, func(data []byte) {
			var change messaging.AttendeeChange
			if err := json.Unmarshal(data, &change); err != nil {
				log.Printf("[event-sub] unmarshal attendee change session=%s: %v", sid, err)
				return
			}
			resp, _ := protocol.NewServerMessage(protocol.TypeAttendeeUpdate, protocol.AttendeeUpdateMsg{
				EventID: change.EventID,
				UserID:  change.UserID,
				Action:  change.Action,
			})
			if err := server.SendMessage(sid, resp); err != nil {
				log.Printf("[event-sub] send attendee update to %s failed: %v", sid, err)
			}
		})
		if err != nil {
			log.Printf("[event-sub] subscribe attendees event=%s session=%s FAILED: %v", eventID, sid, err)
		}

		err = natsClient.SubscribeSocialChanges(eventID, sid, func(data []byte) {
			var change messaging.SocialChange
			if err := json.Unmarshal(data, &change); err != nil {
				return
			}
			resp, _ := protocol.NewServerMessage(protocol.TypeSocialsUpdate, protocol.SocialsUpdateMsg{
				EventID: eventID,
				UserID:  change.UserID,
			})
			server.SendMessage(sid, resp)
		})
		if err != nil {
			log.Printf("[event-sub] subscribe socials event=%s session=%s FAILED: %v", eventID, sid, err)
		}

		err = natsClient.SubscribePresenceUpdates(eventID, sid, func(data []byte) {
			var update messaging.PresenceUpdate
			if err := json.Unmarshal(data, &update); err != nil {
				return
			}
			resp, _ := protocol.NewServerMessage(protocol.TypePresenceUpdate, protocol.PresenceUpdateMsg{
				EventID: update.EventID,
				UserID:  update.UserID,
				Online:  update.Online,
			})
			server.SendMessage(sid, resp)
		})
		if err != nil {
			log.Printf("[event-sub] subscribe presence event=%s session=%s FAILED: %v", eventID, sid, err)
		}
	}

	unsubscribeFromEvent := func(sid string) {
		_ = natsClient.UnsubscribeAttendeeChanges(sid)
		_ = natsClient.UnsubscribeSocialChanges(sid)
		_ = natsClient.UnsubscribePresenceUpdates(sid)
	}

	// publishPresence announces an online/offline transition to the event room.
	publishPresence := func(eventID, userID string, online bool) {
		data, _ := json.Marshal(messaging.PresenceUpdate{
			EventID: eventID,
			UserID:  userID,
			Online:  online,
			Ts:      time.Now().Unix(),
		})
		if err := natsClient.PublishPresenceUpdate(eventID, data); err != nil {
			log.Printf("[presence] publish event=%s user=%s: %v", eventID, userID, err)
		}
	}

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// hello — associate the authenticated user with this session
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeHello, func(conn *ws.Connection, msg interface{}) {
		helloMsg, ok := msg.(protocol.HelloMsg)
		if !ok || helloMsg.UserID == "" {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		if err := presenceStore.BindSession(ctx, sid, helloMsg.UserID, ""); err != nil {
			log.Printf("hello: bind session=%s: %v", sid, err)
			return
		}
		log.Printf("hello from session=%s user=%s", sid, helloMsg.UserID)
	})

	// -----------------------------------------------------------------------
	// join_event — enter an event room and start receiving updates
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoinEvent, func(conn *ws.Connection, msg interface{}) {
		joinMsg, ok := msg.(protocol.JoinEventMsg)
		if !ok || joinMsg.EventID == "" {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		sess, err := presenceStore.GetSession(ctx, sid)
		if err != nil || sess == nil || sess.UserID == "" {
			errResp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "not_authenticated", Message: "send hello first",
			})
			conn.WriteMessage(errResp)
			return
		}

		if allowed, err := limiter.Allow(ctx, sess.UserID, ratelimit.RuleJoin); err == nil && !allowed {
			resp, _ := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
				RetryAfter: 60,
			})
			conn.WriteMessage(resp)
			return
		}

		// Leaving a previous room implicitly.
		if sess.EventID != "" && sess.EventID != joinMsg.EventID {
			unsubscribeFromEvent(sid)
			if err := presenceStore.MarkOffline(ctx, sess.EventID, sess.UserID); err != nil {
				log.Printf("join_event: mark offline in old room: %v", err)
			}
			publishPresence(sess.EventID, sess.UserID, false)
		}

		if err := presenceStore.BindSession(ctx, sid, sess.UserID, joinMsg.EventID); err != nil {
			log.Printf("join_event: bind session=%s: %v", sid, err)
			return
		}
		if err := presenceStore.Heartbeat(ctx, joinMsg.EventID, sess.UserID); err != nil {
			log.Printf("join_event: heartbeat event=%s user=%s: %v", joinMsg.EventID, sess.UserID, err)
		}

		subscribeToEvent(sid, joinMsg.EventID)
		publishPresence(joinMsg.EventID, sess.UserID, true)

		count, err := presenceStore.OnlineCount(ctx, joinMsg.EventID)
		if err != nil {
			log.Printf("join_event: online count event=%s: %v", joinMsg.EventID, err)
		}
		resp, _ := protocol.NewServerMessage(protocol.TypeEventJoined, protocol.EventJoinedMsg{
			EventID:     joinMsg.EventID,
			OnlineCount: count,
		})
		conn.WriteMessage(resp)

		log.Printf("join_event from session=%s user=%s event=%s", sid, sess.UserID, joinMsg.EventID)
	})

	// -----------------------------------------------------------------------
	// heartbeat — keep the attendee's presence record fresh
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeHeartbeat, func(conn *ws.Connection, msg interface{}) {
		hbMsg, ok := msg.(protocol.HeartbeatMsg)
		if !ok {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		sess, err := presenceStore.GetSession(ctx, sid)
		if err != nil || sess == nil || sess.UserID == "" {
			return
		}

		eventID := hbMsg.EventID
		if eventID == "" {
			eventID = sess.EventID
		}
		if eventID == "" {
			return
		}

		if err := presenceStore.Heartbeat(ctx, eventID, sess.UserID); err != nil {
			log.Printf("heartbeat: event=%s user=%s: %v", eventID, sess.UserID, err)
		}
		if err := presenceStore.TouchSession(ctx, sid); err != nil {
			log.Printf("heartbeat: touch session=%s: %v", sid, err)
		}
	})

	// -----------------------------------------------------------------------
	// leave_event — leave the current room
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveEvent, func(conn *ws.Connection, msg interface{}) {
		sid := conn.ID
		ctx := context.Background()

		sess, err := presenceStore.GetSession(ctx, sid)
		if err != nil || sess == nil || sess.UserID == "" || sess.EventID == "" {
			return
		}

		unsubscribeFromEvent(sid)
		if err := presenceStore.MarkOffline(ctx, sess.EventID, sess.UserID); err != nil {
			log.Printf("leave_event: mark offline event=%s user=%s: %v", sess.EventID, sess.UserID, err)
		}
		publishPresence(sess.EventID, sess.UserID, false)

		if err := presenceStore.BindSession(ctx, sid, sess.UserID, ""); err != nil {
			log.Printf("leave_event: bind session=%s: %v", sid, err)
		}

		log.Printf("leave_event from session=%s user=%s event=%s", sid, sess.UserID, sess.EventID)
	})

	server = ws.NewServer(config, presenceStore, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	// Throttle new connections per source host. Fail open if Redis is down.
	server.SetConnectGate(func(remoteAddr string) bool {
		host, _, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			host = remoteAddr
		}
		allowed, err := limiter.Allow(context.Background(), host, ratelimit.RuleConnect)
		if err != nil {
			return true
		}
		return allowed
	})

	// Handle disconnects: mark the attendee offline and tear down the
	// session's NATS subscriptions.
	server.SetOnDisconnect(func(connID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		sess, err := presenceStore.GetSession(ctx, connID)
		if err != nil || sess == nil {
			return
		}

		unsubscribeFromEvent(connID)

		if sess.UserID != "" && sess.EventID != "" {
			if err := presenceStore.MarkOffline(ctx, sess.EventID, sess.UserID); err != nil {
				log.Printf("[disconnect] mark offline event=%s user=%s: %v", sess.EventID, sess.UserID, err)
			}
			publishPresence(sess.EventID, sess.UserID, false)
		}

		log.Printf("disconnect cleanup for session=%s user=%s event=%s", connID, sess.UserID, sess.EventID)
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := presenceStore.Close(); err != nil {
			log.Printf("presence store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}
