package controller

import (
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"

	"personify"
	"personify/pkg/errors"
)

// Upload size cap of 32 MiB, matching the multipart memory limit.
const maxUploadSize = 32 << 20

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps service failures to HTTP statuses. Not-found conditions
// become 404; everything else is 500 with the wrapped message, reported to
// Sentry.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	log := hlog.FromRequest(r).Error()
	var target *errors.Error
	if errors.As(err, &target) {
		for key, value := range target.Values {
			log = log.Interface(key, value)
		}
	}
	log.Err(err).Msg("request failed")

	errors.EmitSentry(err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (x *Controller) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (x *Controller) handleUpload(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if filepath.Ext(header.Filename) != ".csv" {
		writeError(w, http.StatusBadRequest, "only .csv files are accepted")
		return
	}

	datasetType := r.FormValue("dataset_type")
	switch datasetType {
	case "interactions", "users", "items":
	default:
		writeError(w, http.StatusBadRequest, "dataset_type must be interactions, users or items")
		return
	}

	content, err := ioutil.ReadAll(file)
	if err != nil {
		respondError(w, r, errors.Wrap(err, "Failed to read uploaded file"))
		return
	}

	info, err := x.storage.UploadDatasetFile(tenantID, datasetType, filepath.Base(header.Filename), content)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (x *Controller) handleTrain(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	var body struct {
		DatasetLocation string                 `json:"dataset_location"`
		Parameters      map[string]interface{} `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.DatasetLocation == "" {
		writeError(w, http.StatusBadRequest, "dataset_location is required")
		return
	}

	parameters := map[string]interface{}{"dataset_location": body.DatasetLocation}
	for k, v := range body.Parameters {
		parameters[k] = v
	}

	execution, err := x.workflow.StartTraining(tenantID, parameters)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (x *Controller) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := int64(10)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	cached, err := x.repo.GetCachedRecommendations(tenantID, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":         userID,
			"recommendations": cached,
			"cached":          true,
		})
		return
	}

	var context map[string]string
	if category := r.URL.Query().Get("category"); category != "" {
		context = map[string]string{"category": category}
	}

	recs, err := x.recommend.GetRecommendations(tenantID, userID, limit, context)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Best-effort write: a cache failure never blocks the response.
	if err := x.repo.CacheRecommendations(tenantID, userID, recs, 24); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to cache recommendations")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         userID,
		"recommendations": recs,
		"cached":          false,
	})
}

func (x *Controller) handleCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	var body struct {
		Name    string   `json:"name"`
		UserIDs []string `json:"user_ids"`
		Message string   `json:"message"`
		Subject string   `json:"subject"`
		Channel string   `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "user_ids is required")
		return
	}

	channel := strings.ToUpper(body.Channel)
	if channel != "EMAIL" && channel != "SMS" {
		writeError(w, http.StatusBadRequest, "channel must be EMAIL or SMS")
		return
	}
	if body.Name == "" {
		body.Name = "campaign"
	}

	segment, err := x.messaging.CreateSegment(tenantID, body.Name, map[string][]string{
		"UserId": body.UserIDs,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	var campaign *personify.MessageCampaign
	if channel == "EMAIL" {
		campaign, err = x.messaging.SendEmailCampaign(tenantID, body.Name, segment.ID, body.Subject, body.Message)
	} else {
		campaign, err = x.messaging.SendSMSCampaign(tenantID, body.Name, segment.ID, body.Message)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	tracked := 0
	for _, userID := range body.UserIDs {
		_, err := x.repo.TrackCampaignEvent(tenantID, campaign.ID, userID, personify.EventSent,
			map[string]interface{}{"channel": channel})
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("user_id", userID).Msg("failed to track sent event")
			continue
		}
		tracked++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"segment":        segment,
		"campaign":       campaign,
		"events_tracked": tracked,
	})
}

func (x *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	training, err := x.recommend.GetTrainingStatus(tenantID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	response := map[string]interface{}{"training": training}

	if executionARN := r.URL.Query().Get("execution_arn"); executionARN != "" {
		execution, err := x.workflow.GetExecutionStatus(executionARN)
		if err != nil {
			respondError(w, r, err)
			return
		}
		response["execution"] = execution
	} else if x.args.StateMachineARN != "" {
		executions, err := x.workflow.RecentExecutions(5)
		if err != nil {
			respondError(w, r, err)
			return
		}
		response["executions"] = executions
	}

	campaigns, err := x.messaging.ListCampaigns(tenantID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	response["campaigns"] = campaigns

	// Operator alert is best-effort and never fails the request.
	if training.Overall == personify.StatusFailed && x.alert.Enabled() {
		if err := x.alert.EmitTrainingFailure(training); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("failed to emit training failure alert")
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (x *Controller) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	campaignID := r.URL.Query().Get("campaign_id")
	if campaignID == "" {
		writeError(w, http.StatusBadRequest, "campaign_id is required")
		return
	}

	metrics, err := x.repo.GetCampaignMetrics(tenantID, campaignID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (x *Controller) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	userID := chi.URLParam(r, "user_id")

	var data map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile, err := x.repo.PutUserProfile(tenantID, userID, data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (x *Controller) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	userID := chi.URLParam(r, "user_id")

	profile, err := x.repo.GetUserProfile(tenantID, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (x *Controller) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	userID := chi.URLParam(r, "user_id")

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	profile, err := x.repo.UpdateUserProfile(tenantID, userID, fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (x *Controller) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	profiles, err := x.repo.ListUserProfiles(tenantID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func (x *Controller) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	var body struct {
		CampaignID string                 `json:"campaign_id"`
		UserID     string                 `json:"user_id"`
		EventType  string                 `json:"event_type"`
		EventData  map[string]interface{} `json:"event_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.CampaignID == "" || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "campaign_id and user_id are required")
		return
	}

	eventType := personify.EventType(body.EventType)
	switch eventType {
	case personify.EventSent, personify.EventOpened, personify.EventClicked, personify.EventConverted:
	default:
		writeError(w, http.StatusBadRequest, "event_type must be sent, opened, clicked or converted")
		return
	}

	event, err := x.repo.TrackCampaignEvent(tenantID, body.CampaignID, body.UserID, eventType, body.EventData)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Clicks and conversions also feed the recommender's event tracker when
	// one is configured.
	if x.args.EventTrackingID != "" {
		if itemID, ok := body.EventData["item_id"].(string); ok && itemID != "" &&
			(eventType == personify.EventClicked || eventType == personify.EventConverted) {
			interaction := []*personify.InteractionEvent{{EventType: string(eventType), ItemID: itemID}}
			if err := x.recommend.PutEvents(x.args.EventTrackingID, body.UserID, event.EventID, interaction); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("failed to forward interaction event")
			}
		}
	}

	writeJSON(w, http.StatusOK, event)
}
