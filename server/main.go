package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolctf/server/attempt"
	"schoolctf/server/challenge"
	"schoolctf/server/hint"
	"schoolctf/server/leaderboard"
	"schoolctf/server/logs"
	"schoolctf/server/metrics"
	"schoolctf/server/store"
	"schoolctf/server/submission"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openStore picks the backend: Postgres when DATABASE_URL is set, otherwise
// an in-memory store for zero-setup classroom runs.
func openStore() store.Store {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("DATABASE_URL not set, using in-memory store (state is lost on restart)")
		return store.NewMemory()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := store.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Println("Connected to Postgres")
	return store.NewPostgres(db)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	secretStr := os.Getenv("AUTH_SECRET")
	if secretStr == "" {
		secretStr = "dev-secret-do-not-use-in-production"
		log.Println("WARNING: AUTH_SECRET not set, using insecure development secret")
	}
	secret := []byte(secretStr)

	cat, err := challenge.Load(getenv("CONTENT_DIR", "./content"))
	if err != nil {
		log.Fatalf("Failed to load content: %v", err)
	}
	log.Printf("Loaded %d event(s) and %d challenge(s)", len(cat.Events()), len(cat.Challenges()))

	st := openStore()

	if err := ensureSuperusers(st, cat.Events(), os.Getenv("SUPERUSER_PIN")); err != nil {
		log.Fatalf("Failed to bootstrap superusers: %v", err)
	}

	metrics.Register()

	r := gin.Default()

	api := r.Group("/api")
	{
		// Event gate, before any identity exists.
		api.POST("/events/verify", func(c *gin.Context) { handleVerifyEvent(c, cat, secret) })

		// Event cookie required, team optional.
		event := api.Group("", eventMiddleware(secret))
		{
			event.GET("/events/current", func(c *gin.Context) { handleCurrentEvent(c, cat) })
			event.POST("/teams/register", func(c *gin.Context) { handleRegister(c, st, secret) })
			event.POST("/teams/login", func(c *gin.Context) { handleLogin(c, st, secret) })
			event.GET("/teams/leaderboard", func(c *gin.Context) {
				leaderboard.HandleLeaderboard(c, st, cat.Emoji)
			})
		}

		api.POST("/teams/signout", handleSignout)
		api.GET("/leaderboard/timer", func(c *gin.Context) { leaderboard.HandleTimerStatus(c, st) })

		// Signed-in team required.
		team := api.Group("", teamAuthMiddleware(secret, st))
		{
			team.GET("/teams/me", func(c *gin.Context) { handleMe(c, st) })

			team.GET("/challenges", func(c *gin.Context) { challenge.HandleListChallenges(c, st, cat) })
			team.POST("/challenges/:id/unlock", func(c *gin.Context) { challenge.HandleUnlock(c, st, cat) })
			team.GET("/challenges/:id/ctfs", func(c *gin.Context) { challenge.HandleListCTFs(c, st, cat) })

			team.POST("/ctfs/:ctfId/start", func(c *gin.Context) { attempt.HandleStart(c, st) })
			team.GET("/ctfs/:ctfId/status", func(c *gin.Context) { attempt.HandleStatus(c, st) })
			team.POST("/ctfs/:ctfId/submit", func(c *gin.Context) { submission.HandleSubmit(c, st, cat) })
			team.GET("/ctfs/:ctfId/hints", func(c *gin.Context) { hint.HandleList(c, st) })
			team.POST("/ctfs/:ctfId/hints/purchase", func(c *gin.Context) { hint.HandlePurchase(c, st) })

			// Superuser only.
			admin := team.Group("", superuserMiddleware())
			{
				admin.POST("/leaderboard/timer", func(c *gin.Context) { leaderboard.HandleTimerSet(c, st) })
				admin.PATCH("/leaderboard/timer", func(c *gin.Context) { leaderboard.HandleTimerExtend(c, st) })
				admin.DELETE("/teams/:teamId", func(c *gin.Context) { handleDeleteTeam(c, st) })
				admin.GET("/admin/leaderboard/export", func(c *gin.Context) {
					leaderboard.HandleExport(c, st, cat.Emoji)
				})
				admin.GET("/admin/logs", func(c *gin.Context) { logs.HandleGetLogs(c, st) })
			}
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	port := getenv("SERVER_PORT", "8080")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
