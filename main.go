package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"telecom-project/tasks-service/handlers"
	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/middleware"
	"telecom-project/tasks-service/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Tasks Service...")
	err := godotenv.Load(".env")
	if err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded, relying on process environment: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoURI == "" || mongoDBName == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: MONGO_URI and MONGO_DB_NAME must be set in the environment.")
	}
	if os.Getenv("JWT_SECRET") == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: JWT_SECRET is not set in the environment variables.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	tasksCollection := db.Collection("tasks")
	usersCollection := db.Collection("users")
	reportsCollection := db.Collection("reports")
	objectsCollection := db.Collection("objects")
	logging.Logger.Infof("Event ID: DB_COLLECTIONS_SET, Description: Using MongoDB database %s with collections tasks/users/reports/objects", mongoDBName)

	// Concurrent creates with the same id race past the pre-insert lookup;
	// the unique index makes the second insert fail instead.
	_, err = tasksCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "taskId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: Failed to ensure unique index on tasks.taskId: %v", err)
	}

	emailBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "email-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	fileService := services.NewFileService(os.Getenv("UPLOADS_DIR"))
	userService := services.NewUserService(usersCollection)
	notificationService := services.NewNotificationService(emailBreaker, os.Getenv("APP_BASE_URL"))
	dashboardService := services.NewDashboardService(reportsCollection)
	taskService := services.NewTaskService(tasksCollection, objectsCollection, reportsCollection, userService, fileService, notificationService)

	taskHandler := handlers.NewTaskHandler(taskService)
	userHandler := handlers.NewUserHandler(userService)
	dashboardHandler := handlers.NewDashboardHandler(userService, dashboardService)

	r := mux.NewRouter()

	r.HandleFunc("/api/tasks", taskHandler.CreateTask).Methods(http.MethodPost)
	r.Handle("/api/tasks", middleware.JWTAuthMiddleware(http.HandlerFunc(taskHandler.GetAllTasks))).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskId}", taskHandler.GetTask).Methods(http.MethodGet)
	r.Handle("/api/tasks/{taskId}", middleware.JWTAuthMiddleware(http.HandlerFunc(taskHandler.UpdateTask))).Methods(http.MethodPatch)

	r.Handle("/api/users/me", middleware.JWTAuthMiddleware(http.HandlerFunc(userHandler.GetCurrentUser))).Methods(http.MethodGet)
	r.Handle("/api/users", middleware.JWTAuthMiddleware(http.HandlerFunc(userHandler.GetAllUsers))).Methods(http.MethodGet)

	r.Handle("/api/dashboard/summary", middleware.JWTAuthMiddleware(http.HandlerFunc(dashboardHandler.GetSummary))).Methods(http.MethodGet)
	r.Handle("/api/reports", middleware.JWTAuthMiddleware(http.HandlerFunc(dashboardHandler.GetRecentReports))).Methods(http.MethodGet)

	// Uploaded order files and attachments are served back by their stored
	// relative URLs.
	uploadsDir := os.Getenv("UPLOADS_DIR")
	if uploadsDir == "" {
		uploadsDir = "public/uploads"
	}
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	corsRouter := enableCORS(r)

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: SERVER_PORT is not set in the environment variables.")
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsRouter); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
