package orch

import (
	"context"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

// UpdateStatus stores the status on the account and tells everyone. Others
// see invisible as offline; the user's own sessions see the real value.
func (o *Orchestrator) UpdateStatus(ctx context.Context, c events.Caller, ev *events.UpdateStatus) {
	st, err := domain.ParseStatus(ev.Status)
	if err != nil {
		o.reject(c, err.Error())
		return
	}
	uid, ok := o.Gateway.SetStatus(c.Conn, st)
	if !ok {
		return
	}
	if err := o.Store.SetUserStatus(ctx, uid, st); err != nil {
		o.storeFailed(err, c, "set_user_status")
	}
	o.Gateway.BroadcastAllExceptUser(uid, events.PresenceUpdate{UserID: uid, Status: st.Public()})
	o.Gateway.SendToUser(uid, events.PresenceUpdate{UserID: uid, Status: st})
}

// UpdateActivity is not persisted. While the user is invisible the activity
// only reaches their own sessions.
func (o *Orchestrator) UpdateActivity(_ context.Context, c events.Caller, ev *events.UpdateActivity) {
	uid, ok := o.Gateway.SetActivity(c.Conn, ev.Activity)
	if !ok {
		return
	}
	out := events.ActivityUpdate{UserID: uid, Activity: ev.Activity}
	if st, _ := o.Gateway.UserStatus(uid); st.Visible() {
		o.Gateway.BroadcastAll(out)
		return
	}
	o.Gateway.SendToUser(uid, out)
}

func (o *Orchestrator) ShareServerKey(ctx context.Context, c events.Caller, ev *events.ShareServerKey) {
	if !o.isMember(ctx, ev.ServerID, c.UserID) || !o.isMember(ctx, ev.ServerID, ev.UserID) {
		o.reject(c, "not a member of this server")
		return
	}
	key := domain.ServerKey{
		ServerID:     ev.ServerID,
		UserID:       ev.UserID,
		EncryptedKey: ev.EncryptedKey,
		SharedBy:     c.UserID,
		UpdatedAt:    o.now(),
	}
	if err := o.Store.PutServerKey(ctx, key); err != nil {
		o.storeFailed(err, c, "put_server_key")
		o.Gateway.SendError(c.Conn, "failed to share key")
		return
	}
	o.Gateway.SendToUser(ev.UserID, events.ServerKeyShared{
		ServerID:     ev.ServerID,
		FromUserID:   c.UserID,
		EncryptedKey: ev.EncryptedKey,
	})
}

func (o *Orchestrator) RequestServerKey(ctx context.Context, c events.Caller, ev *events.RequestServerKey) {
	if !o.isMember(ctx, ev.ServerID, c.UserID) {
		return
	}
	o.Gateway.BroadcastAllExcept(c.Conn, events.ServerKeyRequested{ServerID: ev.ServerID, UserID: c.UserID})
}
