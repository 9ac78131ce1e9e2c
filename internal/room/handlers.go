package room

import (
	"context"
	"encoding/json"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/auth"
	"github.com/Vasu1712/scenyx-rooms/internal/editor"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// prodEnvironment is the client environment whose analytics are persisted.
const prodEnvironment = "prod"

func (rt *Router) registerDefaults() {
	rt.Handle(MsgSessionStart, handleSessionStart)
	rt.Handle(MsgSessionAction, handleSessionAction)
	rt.Handle(MsgSessionEnd, handleSessionEnd)

	rt.Handle(MsgHostJoined, hostOnly(handleHostJoined))
	rt.Handle(MsgHostLeft, hostOnly(handleHostLeft))

	rt.Handle(MsgAnalyticsUserJoined, handleAnalyticsUserJoined)
	rt.Handle(MsgStoreEmote, handleStoreEmote)

	rt.Handle(MsgUserMessage, handleUserMessage)
	rt.Handle(MsgGetUserState, handleGetUserState)
	rt.Handle(MsgSetUserState, handleSetUserState)

	rt.Handle(MsgPathStart, handlePathStart)
	rt.Handle(MsgPathSegmentsAdd, handlePathSegmentsAdd)
	rt.Handle(MsgPathEnd, handlePathEnd)

	rt.Handle(MsgSceneLoadRequest, hostOnly(handleSceneLoad))
	rt.Handle(MsgSceneAddPresetRequest, hostOnly(handleAddPreset))
	rt.Handle(MsgSceneClonePresetRequest, hostOnly(handleClonePreset))
	rt.Handle(MsgSceneChangePreset, hostOnly(handleChangePreset))
	rt.Handle(MsgSceneDeletePresetRequest, hostOnly(handleDeletePreset))
	rt.Handle(MsgSceneDelete, hostOnly(handleSceneDelete))

	rt.Handle(MsgModeratorMessage, hostOnly(handleModeratorMessage))
	rt.Handle(MsgModeratorCrash, hostOnly(handleModeratorCrash))

	rt.Handle(MsgPresetUpdate, hostOnly(handlePresetUpdate))
	rt.Handle(MsgSettingUpdate, hostOnly(handleSettingUpdate))
	rt.Handle(MsgVideoUpdate, hostOnly(handleVideoUpdate))
	rt.Handle(MsgSoundLocator, handleSoundLocator)

	rt.Handle(MsgGiveawayClaim, handleGiveawayClaim)
}

type hostHandler func(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool

// hostOnly guards scene-editing tags.
func hostOnly(h hostHandler) HandlerFunc {
	return func(ctx context.Context, r *Room, m *Member, msg *Message) bool {
		host, ok := m.Identity.(*models.HostSession)
		if !ok {
			r.log.Warn("[Room] Ignored editor message from non-host", "type", msg.Type, "member", m.ID(), "kind", m.Identity.Kind())
			return false
		}
		return h(ctx, r, m, host, msg)
	}
}

func (r *Room) reply(m *Member, event string, payload any) {
	if err := m.Conn.Send(event, payload); err != nil {
		r.log.Warn("[Room] Failed to reply", "member", m.ID(), "event", event, "error", err)
	}
}

func (r *Room) decode(m *Member, msg *Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		r.log.Warn("[Room] Malformed message", "type", msg.Type, "member", m.ID(), "error", err)
		return false
	}
	return true
}

func (r *Room) attach(msg *Message, key string, v any) bool {
	if err := msg.Attach(key, v); err != nil {
		r.log.Error("[Room] Failed to attach field", "type", msg.Type, "key", key, "error", err)
		return false
	}
	return true
}

// verify re-proves the sender with a token carried in the message.
func (r *Room) verify(ctx context.Context, m *Member, token, sceneID string) (*models.RawSession, *models.User, error) {
	if sceneID == "" {
		sceneID = m.SceneID()
	}
	raw, user, err := r.svc.Auth.Verify(ctx, auth.Credentials{Token: token, SceneID: sceneID})
	if err != nil {
		r.log.Info("[Room] Message credential rejected", "member", m.ID(), "error", err)
	}
	return raw, user, err
}

func sessionIDOf(id models.Identity) string {
	switch s := id.(type) {
	case *models.HostSession:
		return s.SessionID
	case *models.AnalyticsSession:
		return s.SessionID
	}
	return ""
}

func walletOf(id models.Identity) string {
	switch s := id.(type) {
	case *models.HostSession:
		return s.ConnectedWallet
	case *models.AnalyticsSession:
		return s.ConnectedWallet
	}
	return ""
}

// recordsAnalytics reports whether the member's analytics are persisted.
func recordsAnalytics(m *Member) (*models.AnalyticsSession, bool) {
	a, ok := m.Identity.(*models.AnalyticsSession)
	return a, ok && a.Environment == prodEnvironment
}

func handleSessionStart(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req struct {
		SessionToken string `json:"sessionToken"`
		SceneID      string `json:"sceneId"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	if req.SceneID != "" && req.SceneID != m.SceneID() {
		r.log.Warn("[Room] Session start for another scene", "member", m.ID(), "requested", req.SceneID)
		return false
	}
	raw, user, err := r.verify(ctx, m, req.SessionToken, req.SceneID)
	if err != nil {
		return false
	}

	scene, err := r.svc.Scenes.ObtainScene(ctx, m.SceneID(), raw.Location)
	if err != nil {
		r.log.Error("[Room] Failed to obtain scene", "error", err)
		return false
	}
	r.reply(m, EventSessionStarted, map[string]any{"session": m.Identity, "user": user})

	view, moderation, err := r.svc.Editor.ActiveView(ctx, scene)
	if err != nil {
		r.log.Error("[Room] Failed to build active preset", "presetId", scene.ActivePreset, "error", err)
		return false
	}
	if view != nil {
		r.annotateVideos(view)
	}
	r.reply(m, string(MsgPresetUpdate), map[string]any{
		"action":        editor.ActionInit,
		"scenePreset":   view,
		"sceneSettings": map[string]any{"moderation": moderation},
	})
	return false
}

// annotateVideos fills in the cached status of every streamable instance and
// starts tracking the ones the cache has not seen yet.
func (r *Room) annotateVideos(view *models.PresetView) {
	for i := range view.Videos {
		v := &view.Videos[i]
		for _, inst := range v.Instances {
			if !inst.Streamable() {
				continue
			}
			if v.IsLive == nil {
				v.IsLive = make(map[string]models.StreamStatus)
			}
			if rec, ok := r.streams.Find(inst.ID, r.SceneID); ok {
				v.IsLive[inst.ID] = rec.Status
				continue
			}
			r.streams.Upsert(models.StreamRecord{ID: inst.ID, URL: inst.LiveSrc, Status: models.StreamUnknown, SceneID: r.SceneID})
			v.IsLive[inst.ID] = models.StreamUnknown
		}
	}
}

func handleSessionAction(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	session, ok := recordsAnalytics(m)
	if !ok {
		return false
	}
	var req struct {
		Action       string         `json:"action"`
		Metadata     map[string]any `json:"metadata"`
		PathPoint    []float64      `json:"pathPoint"`
		SessionToken string         `json:"sessionToken"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	if _, _, err := r.verify(ctx, m, req.SessionToken, ""); err != nil {
		return false
	}
	err := r.svc.Sessions.LogAction(ctx, models.AnalyticsAction{
		SessionID: session.SessionID,
		Name:      req.Action,
		Metadata:  req.Metadata,
		PathPoint: req.PathPoint,
	})
	if err != nil {
		r.log.Error("[Room] Failed to log analytics action", "action", req.Action, "session", session.SessionID, "error", err)
	}
	return false
}

func handleSessionEnd(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	if m.ended {
		return false
	}
	if err := r.svc.Auth.EndSession(ctx, m.Identity); err != nil {
		r.log.Warn("[Room] Failed to end session", "member", m.ID(), "error", err)
		return false
	}
	m.ended = true
	return false
}

func handleHostJoined(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	r.hostJoined(ctx, m, host)
	return false
}

func handleHostLeft(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	r.svc.Audit.Record(ctx, host, host.SceneID, audit.Change{Action: "left scene"}, nil)
	return false
}

func handleAnalyticsUserJoined(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req struct {
		User models.UserProjection `json:"user"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	userID := req.User.ID
	if userID == "" {
		userID = m.Identity.User()
	}
	if emote, ok := r.emotes[userID]; ok {
		if !r.attach(msg, "emote", emote) {
			return false
		}
	}
	r.log.Info("[Room] Analytics user joined", "displayName", req.User.DisplayName, "wallet", req.User.ConnectedWallet)
	return true
}

func handleStoreEmote(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	userID := m.Identity.User()
	if userID == "" {
		return true
	}
	if msg.Has("emote") {
		r.emotes[userID] = msg.Raw("emote")
	} else {
		delete(r.emotes, userID)
	}
	return true
}

func handleUserMessage(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req struct {
		SessionToken string          `json:"sessionToken"`
		ID           string          `json:"id"`
		Data         json.RawMessage `json:"data"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	raw, user, err := r.verify(ctx, m, req.SessionToken, "")
	if err != nil {
		return false
	}

	from, name := raw.ConnectedWallet, ""
	if user != nil {
		name = user.DisplayName
		if from == "" {
			from = user.ConnectedWallet
		}
	}
	r.log.Debug("[Room] User message", "from", name, "id", req.ID)
	// only the sanitised copy is relayed
	r.members.DeliverToScene(m.SceneID(), string(MsgUserMessage), map[string]any{
		"from":            from,
		"fromDisplayName": name,
		"id":              req.ID,
		"data":            req.Data,
	})
	return false
}

type userStateRequest struct {
	SessionToken string `json:"sessionToken"`
	Key          string `json:"key"`
	Value        any    `json:"value"`
}

func handleGetUserState(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req userStateRequest
	if !r.decode(m, msg, &req) || req.Key == "" {
		return false
	}
	if _, _, err := r.verify(ctx, m, req.SessionToken, ""); err != nil {
		return false
	}
	value, err := r.svc.UserState.GetUserState(ctx, m.SceneID(), req.Key)
	if err != nil {
		r.log.Error("[Room] Failed to read user state", "key", req.Key, "error", err)
		return false
	}
	r.members.DeliverToScene(m.SceneID(), EventGetUserStateResponse, map[string]any{"key": req.Key, "value": value})
	return false
}

func handleSetUserState(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req userStateRequest
	if !r.decode(m, msg, &req) || req.Key == "" {
		return false
	}
	if _, _, err := r.verify(ctx, m, req.SessionToken, ""); err != nil {
		return false
	}
	if err := r.svc.UserState.SetUserState(ctx, m.SceneID(), req.Key, req.Value); err != nil {
		r.log.Error("[Room] Failed to write user state", "key", req.Key, "error", err)
		return false
	}
	r.members.DeliverToScene(m.SceneID(), EventSetUserStateResponse, map[string]any{"key": req.Key, "value": req.Value})
	return false
}

func handlePathStart(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	pathID, err := r.svc.Sessions.CreatePath(ctx, sessionIDOf(m.Identity))
	if err != nil {
		r.log.Error("[Room] Failed to start path", "member", m.ID(), "error", err)
		return false
	}
	r.reply(m, EventPathStarted, map[string]any{"action": EventPathStarted, "pathId": pathID})
	return false
}

func handlePathSegmentsAdd(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	if _, ok := recordsAnalytics(m); !ok {
		return false
	}
	var req struct {
		PathID   string               `json:"pathId"`
		Segments []models.PathSegment `json:"pathSegments"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	added, total, err := r.svc.Sessions.ExtendPath(ctx, req.PathID, req.Segments)
	if err != nil {
		r.log.Error("[Room] Failed to extend path", "pathId", req.PathID, "error", err)
		return false
	}
	r.reply(m, EventPathSegmentsAdded, map[string]any{
		"action": EventPathSegmentsAdded,
		"pathId": req.PathID,
		"added":  added,
		"total":  total,
	})
	return false
}

func handlePathEnd(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req struct {
		PathID string `json:"pathId"`
	}
	if !r.decode(m, msg, &req) || req.PathID == "" {
		return false
	}
	if err := r.svc.Sessions.ClosePath(ctx, req.PathID); err != nil {
		r.log.Warn("[Room] Failed to close path", "pathId", req.PathID, "error", err)
	}
	return false
}

type sceneLoadResponse struct {
	*models.Scene
	Error string `json:"error,omitempty"`
}

func handleSceneLoad(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		SceneID string `json:"sceneId"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	if req.SceneID == "" {
		req.SceneID = host.SceneID
	}
	scene, err := r.svc.Scenes.GetScene(ctx, req.SceneID)
	if err != nil {
		r.log.Info("[Room] Scene not found", "requested", req.SceneID, "error", err)
	}
	resp := sceneLoadResponse{Scene: scene}
	if scene == nil || scene.ActivePreset == "" {
		resp.Error = "No active preset."
	}
	r.reply(m, EventSceneLoadResponse, resp)
	return false
}

func handleAddPreset(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		Name string `json:"name"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	change, err := r.svc.Editor.AddPreset(ctx, host, req.Name)
	if err != nil {
		r.log.Error("[Room] Failed to add preset", "error", err)
		return false
	}
	r.reply(m, EventAddPresetResponse, change)
	return false
}

func handleClonePreset(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		PresetID string `json:"presetId"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	change, err := r.svc.Editor.ClonePreset(ctx, host, req.PresetID)
	if err != nil {
		r.log.Error("[Room] Failed to clone preset", "presetId", req.PresetID, "error", err)
		return false
	}
	r.reply(m, EventClonePresetResponse, struct {
		*editor.PresetChange
		PresetID string `json:"presetId"`
	}{change, req.PresetID})
	return false
}

// handleChangePreset answers every member of the room, not only the scene.
func handleChangePreset(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		ID string `json:"id"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	change, err := r.svc.Editor.ChangePreset(ctx, host, req.ID)
	if err != nil {
		r.log.Error("[Room] Failed to change preset", "presetId", req.ID, "error", err)
		return false
	}
	r.members.Broadcast(string(MsgSceneChangePreset), change)
	return false
}

func handleDeletePreset(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		PresetID string `json:"presetId"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	change, err := r.svc.Editor.DeletePreset(ctx, host, req.PresetID, &r.streams)
	if err != nil {
		r.log.Error("[Room] Failed to delete preset", "presetId", req.PresetID, "error", err)
		return false
	}
	r.reply(m, EventDeletePresetResponse, struct {
		*editor.PresetChange
		PresetID string `json:"presetId"`
	}{change, req.PresetID})
	return false
}

func handleSceneDelete(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		ID string `json:"id"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	r.svc.Audit.Record(ctx, host, host.SceneID, audit.Change{Action: "delete", Element: "scene", Ref: req.ID}, nil)
	return false
}

func handleModeratorMessage(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	r.log.Info("[Room] Moderator message", "from", host.DisplayName)
	r.svc.Audit.Record(ctx, host, host.SceneID, audit.Change{Action: "sent moderator message", Element: "scene", Property: "moderation"}, nil)
	return true
}

func handleModeratorCrash(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	r.log.Info("[Room] Moderator crash", "from", host.DisplayName)
	r.svc.Audit.Record(ctx, host, host.SceneID, audit.Change{Action: "nuked a user", Element: "scene", Property: "moderation"}, nil)
	return true
}

func handlePresetUpdate(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req editor.PresetUpdate
	if !r.decode(m, msg, &req) {
		return false
	}
	out, err := r.svc.Editor.Apply(ctx, host, req, &r.streams)
	if err != nil {
		r.log.Error("[Room] Preset update failed", "action", req.Action, "element", req.Element, "member", m.ID(), "error", err)
		return false
	}
	if out.Preset != nil && !r.attach(msg, "scenePreset", out.Preset) {
		return false
	}
	return r.attach(msg, "user", out.User)
}

func handleSettingUpdate(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		ID          string               `json:"id"`
		SettingData *models.SceneSetting `json:"settingData"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	if req.SettingData == nil {
		r.log.Warn("[Room] Setting update without settingData", "member", m.ID())
		return false
	}
	if req.SettingData.ID == "" {
		req.SettingData.ID = req.ID
	}
	_, user, err := r.svc.Editor.PutSetting(ctx, host, *req.SettingData)
	if err != nil {
		r.log.Error("[Room] Setting update failed", "setting", req.SettingData.Type, "error", err)
		return false
	}
	return r.attach(msg, "user", user)
}

func handleVideoUpdate(ctx context.Context, r *Room, m *Member, host *models.HostSession, msg *Message) bool {
	var req struct {
		Reason       string `json:"reason"`
		InstanceData struct {
			ID string `json:"id"`
		} `json:"instanceData"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	if req.Reason == "url_changed" && req.InstanceData.ID != "" {
		r.streams.RemoveID(req.InstanceData.ID, host.SceneID)
	}
	return false
}

func handleSoundLocator(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	addr := walletOf(m.Identity)
	if addr == "" {
		r.log.Warn("[Room] Sound locator without wallet", "member", m.ID())
		return false
	}
	projection := models.Project(m.Identity)
	fallback := &models.User{ID: projection.ID, DisplayName: projection.DisplayName, ConnectedWallet: addr}
	if projection.ID != "" {
		if u, err := r.svc.Users.GetUser(ctx, projection.ID); err == nil {
			fallback = u
		}
	}
	user, err := r.svc.Users.ObtainUserByWallet(ctx, addr, fallback)
	if err != nil {
		r.log.Error("[Room] Failed to resolve sound locator user", "wallet", addr, "error", err)
		return false
	}
	return r.attach(msg, "user", user)
}

func handleGiveawayClaim(ctx context.Context, r *Room, m *Member, msg *Message) bool {
	var req struct {
		SK           string `json:"sk"`
		GiveawayID   string `json:"giveawayId"`
		SceneID      string `json:"sceneId"`
		SessionToken string `json:"sessionToken"`
	}
	if !r.decode(m, msg, &req) {
		return false
	}
	resp := map[string]any{"giveawayId": req.GiveawayID, "sk": req.SK}

	raw, user, err := r.verify(ctx, m, req.SessionToken, req.SceneID)
	if err == nil && user == nil && raw.UserID != "" {
		user, _ = r.svc.Users.GetUser(ctx, raw.UserID)
	}
	if err != nil || user == nil {
		resp["responseType"] = models.ClaimDenied
		resp["reason"] = models.RejectInauthentic
		r.reply(m, EventGiveawayClaimResponse, resp)
		return false
	}

	addr := raw.ConnectedWallet
	if addr == "" {
		addr = user.ConnectedWallet
	}
	result, err := r.svc.Giveaways.Claim(ctx, models.ClaimRequest{
		GiveawayID: req.GiveawayID,
		SceneID:    m.SceneID(),
		UserID:     user.ID,
		Wallet:     addr,
	})
	if err != nil {
		r.log.Error("[Room] Giveaway claim failed", "giveawayId", req.GiveawayID, "error", err)
		resp["responseType"] = models.ClaimServerError
		resp["error"] = err.Error()
		r.reply(m, EventGiveawayClaimResponse, resp)
		return false
	}
	resp["responseType"] = result.ResponseType
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	r.reply(m, EventGiveawayClaimResponse, resp)
	return false
}
