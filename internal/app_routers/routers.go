// Package approuters wires the HTTP surface: the gin application server, the
// separate WebSocket listener and the coordinated shutdown of both.
package approuters

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/configuration"
	"github.com/nikspatil0120/eduplatform-sub001/internal/metrics"
)

// StartServer runs the socket and application servers until a signal or a
// listener failure, then drains both.
func StartServer(container *configuration.Container) {
	h := container.Hub

	// Membership is checked before the upgrade so a non-member never gets a
	// subscription, not even a short-lived one.
	http.HandleFunc("/"+container.Config.ChatDatabase.SocketRoute, func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		groupID := r.URL.Query().Get("groupId")
		if groupID == "" {
			http.Error(w, "groupId is required", http.StatusBadRequest)
			return
		}

		if err := container.ChatService.JoinGroup(r.Context(), groupID, userID); err != nil {
			http.Error(w, "not a member of this group", http.StatusForbidden)
			return
		}

		h.ServeWS(w, r, userID, groupID)
	})

	socketServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", container.Config.Server.SocketPort),
		Handler:      nil, // DefaultServeMux carries the single WS route
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	appServer := createAppServer(container)

	serverErrors := make(chan error, 2)

	go func() {
		log.Printf("socket server listening at ws://localhost:%d", container.Config.Server.SocketPort)
		if err := socketServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("socket server error: %w", err)
		}
	}()

	go func() {
		log.Printf("application server listening at http://localhost:%d", container.Config.Server.AppPort)
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("app server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Printf("server error: %v", err)
	case sig := <-quit:
		log.Printf("received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The hub goes first so clients get close frames while the listeners are
	// still up, then both servers drain.
	h.Stop()

	if err := socketServer.Shutdown(ctx); err != nil {
		log.Printf("socket server shutdown: %v", err)
	}
	if err := appServer.Shutdown(ctx); err != nil {
		log.Printf("app server shutdown: %v", err)
	}

	log.Println("shutdown complete")
}

func createAppServer(container *configuration.Container) *http.Server {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "https://app.eduplatform.io"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the EduPlatform Messaging Server!",
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	ChatRouters(router, container)
	NotificationRouters(router, container)
	MonitorRouters(router, container)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", container.Config.Server.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
