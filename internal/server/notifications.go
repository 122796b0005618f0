package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/repo"
)

type notificationOut struct {
	Body domain.Notification
}

func registerNotifications(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "notification-list",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the caller's notifications",
	}, func(ctx context.Context, in *struct {
		Unread bool   `query:"unread" doc:"Only unread notifications"`
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50" maximum:"500"`
	}) (*struct {
		Body struct {
			Notifications []domain.Notification `json:"notifications"`
			UnreadCount   int                   `json:"unread_count"`
		}
	}, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		notifications, err := eng.Repo.ListNotifications(ctx, repo.NotificationFilters{
			Recipient:  p.MemberID,
			UnreadOnly: in.Unread,
			Type:       in.Type,
			Limit:      normalizeLimit(in.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		unread, err := eng.Repo.CountUnread(ctx, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Notifications []domain.Notification `json:"notifications"`
				UnreadCount   int                   `json:"unread_count"`
			}
		}{}
		out.Body.Notifications = notifications
		out.Body.UnreadCount = unread
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark a notification read",
		Description: "Idempotent. Marking an already-read notification changes nothing.",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*notificationOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		n, err := eng.Repo.GetNotification(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if n.Recipient != p.MemberID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "not your notification", nil)
		}
		n, err = eng.Repo.MarkNotificationRead(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &notificationOut{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notification-read-all",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark all of the caller's notifications read",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Marked int64 `json:"marked"`
		}
	}, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		marked, err := eng.Repo.MarkAllNotificationsRead(ctx, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Marked int64 `json:"marked"`
			}
		}{}
		out.Body.Marked = marked
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notification-delete",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete a notification",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		n, err := eng.Repo.GetNotification(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if n.Recipient != p.MemberID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "not your notification", nil)
		}
		if err := eng.Repo.DeleteNotification(ctx, in.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
