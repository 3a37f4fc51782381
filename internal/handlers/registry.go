package handlers

// AppHandlers holds all of the application's handlers.
type AppHandlers struct {
	NotificationHandler *NotificationHandler
}
