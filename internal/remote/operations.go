package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type StartRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
	SavePath  string `json:"save_path"`
	StudyID   string `json:"study_id,omitempty"`
}

type StartResponse struct {
	SessionID string `json:"session_id"`
}

type StopRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	SavePath  string `json:"save_path"`
	StudyID   string `json:"study_id,omitempty"`
}

type StopResponse struct {
	Path string `json:"path"`
}

type EndRequest struct {
	SavePath  string            `json:"save_path"`
	SessionID string            `json:"session_id"`
	Notes     map[string]string `json:"notes,omitempty"`
	Comment   string            `json:"comment,omitempty"`
}

type EndResponse struct {
	Message string `json:"message"`
	CSVPath string `json:"csv_path"`
}

type ListVideosRequest struct {
	SessionID string
	SavePath  string
	StudyID   string
}

type ListVideosResponse struct {
	Videos []string `json:"videos"`
}

type Participant struct {
	SessionID     string  `json:"session_id"`
	StudyID       string  `json:"study_id"`
	BaseSavePath  string  `json:"base_save_path"`
	ParticipantID string  `json:"participant_id"`
	Height        float64 `json:"height"`
	Weight        float64 `json:"weight"`
	Birthday      string  `json:"birthday"`
	Sex           string  `json:"sex"`
}

type ParticipantsResponse struct {
	ParticipantIDs []string `json:"participant_ids"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CalibrationRequest struct {
	StudyID       string  `json:"study_id"`
	SessionID     string  `json:"session_id"`
	DeviceAddress string  `json:"device_address"`
	Duration      int     `json:"duration"`
	BoardRows     int     `json:"board_rows"`
	BoardCols     int     `json:"board_cols"`
	SquareSize    float64 `json:"square_size"`
	SavePath      string  `json:"save_path"`
}

type CalibrationResponse struct {
	ReprojectionError float64 `json:"reprojection_error"`
}

type PoseRequest struct {
	VideoPath string `json:"video_path"`
}

type PoseResponse struct {
	PoseVideoPath string `json:"pose_video_path"`
}

type ConfigResponse struct {
	Host string `json:"host"`
}

// StartRecording asks the device to begin recording the trial req.Name.
func (c *Client) StartRecording(ctx context.Context, req StartRequest) (StartResponse, error) {
	var out StartResponse
	if err := c.request(ctx, http.MethodPost, "/start-recording", nil, req, &out); err != nil {
		return StartResponse{}, fmt.Errorf("start recording: %w", err)
	}
	return out, nil
}

// StopRecording ends the current recording and returns where it was saved.
func (c *Client) StopRecording(ctx context.Context, req StopRequest) (StopResponse, error) {
	var out StopResponse
	if err := c.request(ctx, http.MethodPost, "/stop-recording", nil, req, &out); err != nil {
		return StopResponse{}, fmt.Errorf("stop recording: %w", err)
	}
	return out, nil
}

// EndSession closes the session and has the service export its metadata.
func (c *Client) EndSession(ctx context.Context, req EndRequest) (EndResponse, error) {
	var out EndResponse
	if err := c.request(ctx, http.MethodPost, "/end-session", nil, req, &out); err != nil {
		return EndResponse{}, fmt.Errorf("end session: %w", err)
	}
	return out, nil
}

// ListVideos returns the artifact names for a session in service order.
func (c *Client) ListVideos(ctx context.Context, req ListVideosRequest) ([]string, error) {
	q := url.Values{}
	q.Set("session_id", req.SessionID)
	q.Set("save_path", req.SavePath)
	if req.StudyID != "" {
		q.Set("study_id", req.StudyID)
	}
	var out ListVideosResponse
	if err := c.request(ctx, http.MethodGet, "/list-videos", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if out.Videos == nil {
		return []string{}, nil
	}
	return out.Videos, nil
}

// ListParticipants returns the participant ids known for a study.
func (c *Client) ListParticipants(ctx context.Context, studyID, baseSavePath string) ([]string, error) {
	q := url.Values{}
	q.Set("study_id", studyID)
	q.Set("base_save_path", baseSavePath)
	var out ParticipantsResponse
	if err := c.request(ctx, http.MethodGet, "/participants", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out.ParticipantIDs, nil
}

func (c *Client) SaveParticipant(ctx context.Context, p Participant) (string, error) {
	var out MessageResponse
	if err := c.request(ctx, http.MethodPost, "/save-participant", nil, p, &out); err != nil {
		return "", fmt.Errorf("save participant: %w", err)
	}
	return out.Message, nil
}

// CaptureAndProcessCalibration records a calibration clip and returns the
// reprojection error reported by the service.
func (c *Client) CaptureAndProcessCalibration(ctx context.Context, req CalibrationRequest) (float64, error) {
	var out CalibrationResponse
	if err := c.request(ctx, http.MethodPost, "/capture-and-process-calibration", nil, req, &out); err != nil {
		return 0, fmt.Errorf("calibrate: %w", err)
	}
	return out.ReprojectionError, nil
}

// RunPoseEstimation has the service overlay pose landmarks on the recording
// at videoPath and returns where the overlay video was written.
func (c *Client) RunPoseEstimation(ctx context.Context, videoPath string) (string, error) {
	var out PoseResponse
	if err := c.request(ctx, http.MethodPost, "/run-pose-estimation", nil, PoseRequest{VideoPath: videoPath}, &out); err != nil {
		return "", fmt.Errorf("run pose estimation: %w", err)
	}
	if out.PoseVideoPath == "" {
		return "", fmt.Errorf("run pose estimation: service returned no overlay path")
	}
	return out.PoseVideoPath, nil
}

// CombinedVideoURL is where the service serves the last pose overlay.
func (c *Client) CombinedVideoURL() string {
	return c.baseURL + "/play-combined"
}

// Host returns the device host the service is configured for.
func (c *Client) Host(ctx context.Context) (string, error) {
	var out ConfigResponse
	if err := c.request(ctx, http.MethodGet, "/config", nil, nil, &out); err != nil {
		return "", fmt.Errorf("fetch config: %w", err)
	}
	return out.Host, nil
}

// GetVideo opens the video stream at videoURL, as built by
// inventory.VideoURL. The caller closes the returned body.
func (c *Client) GetVideo(ctx context.Context, videoURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("get video: %w", &RequestError{StatusCode: resp.StatusCode, Detail: decodeDetail(payload)})
	}
	return resp.Body, nil
}
