package services

// ServiceContainer holds all of the application's services.
type ServiceContainer struct {
	NotificationService NotificationService
}
