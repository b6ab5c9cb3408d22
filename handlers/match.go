// handlers/match.go
package handlers

import (
	"game-match-system/middleware"
	"game-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, queryService *services.MatchQueryService, ratingService *services.RatingService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/matches/live", queryService.GetLiveMatches)
	app.Get("/leaderboard/:variant", ratingService.GetLeaderboard)

	// 🔐 Secured routes — require user context (userID, wallet), enforced via middleware
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/matches", queryService.GetMatchHistory)
	secured.Get("/user/ratings", ratingService.GetMyRatings)
	secured.Get("/user/stakes/unclaimed", queryService.GetUnclaimedStakes)
	secured.Patch("/user/stakes/:id/claim", queryService.MarkStakeClaimed)
}
