package cron

import (
	"context"

	"github.com/fidelya/notification-service/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartNotificationCronJobs schedules the periodic maintenance of the
// in-app notification store.
func StartNotificationCronJobs(notificationService *services.NotificationService) {
	c := cron.New()

	// Drop in-app notifications past their 7-day TTL.
	c.AddFunc("@hourly", func() {
		err := notificationService.DeleteExpiredNotifications(context.Background())
		if err != nil {
			logrus.WithError(err).Error("DeleteExpiredNotifications failed")
		}
	})

	c.Start()
}
