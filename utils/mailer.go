package utils

import (
	"fmt"
	"strings"

	"dispatch-app/config"
	"dispatch-app/models"

	"gopkg.in/gomail.v2"
)

// SendDispatchNotification mails a summary of a newly created dispatch to
// the configured recipient. It is a no-op when SMTP is not configured, so
// callers can fire it unconditionally.
func SendDispatchNotification(header *models.DispatchHeader) error {
	if config.SMTPHost == "" || config.SMTPRecipient == "" {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Dispatch %s to %s created by %s.\n\n", header.ID.String(), header.Destination, header.DispatchedBy)
	fmt.Fprintf(&body, "Dispatch date: %s\n", header.DispatchDate.Format("2006-01-02"))
	fmt.Fprintf(&body, "Status: %s\n\nItems:\n", header.Status)
	for _, item := range header.Items {
		fmt.Fprintf(&body, "- %s (%s) x %d\n", item.ItemName, item.ItemCode, item.Quantity)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", config.SMTPSender)
	msg.SetHeader("To", config.SMTPRecipient)
	msg.SetHeader("Subject", fmt.Sprintf("Dispatch %s created - %s", header.ID.String(), header.Destination))
	msg.SetBody("text/plain", body.String())

	dialer := gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.SMTPSender, config.SMTPPassword)
	if err := dialer.DialAndSend(msg); err != nil {
		config.GetLogger().Errorf("failed to send dispatch notification: %v", err)
		return err
	}

	return nil
}
