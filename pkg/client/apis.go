package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ot2lab/liquidtrack/pkg/api"
	"github.com/ot2lab/liquidtrack/pkg/config"
	"github.com/ot2lab/liquidtrack/pkg/events"
	"github.com/ot2lab/liquidtrack/pkg/tracker"
	"github.com/ot2lab/liquidtrack/pkg/tube"
)

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

func (c *Client) GetStatus() (*api.DaemonStatus, error) {
	var st api.DaemonStatus
	if err := c.getJSON("/status", &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get daemon status")
	}
	return &st, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	var conf config.RawFileConfig
	if err := c.getJSON("/config", &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}
	return &conf, nil
}

func (c *Client) SetDefaultTubeType(tubeType string) (string, error) {
	return message(c.putJSON("/default-tube-type", tubeType))
}

func (c *Client) SetTrackerTTL(minutes int) (string, error) {
	return message(c.Put("/tracker-ttl", strconv.Itoa(minutes)))
}

func (c *Client) SetSweepSchedule(expr string) (string, error) {
	return message(c.putJSON("/sweep-schedule", expr))
}

func (c *Client) ListTubes() ([]tube.Geometry, error) {
	var ret []tube.Geometry
	if err := c.getJSON("/tubes", &ret); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list tubes")
	}
	return ret, nil
}

func (c *Client) GetTube(tubeType string) (*tube.Geometry, error) {
	var g tube.Geometry
	if err := c.getJSON("/tubes/"+url.PathEscape(tubeType), &g); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get tube %s", tubeType)
	}
	return &g, nil
}

func (c *Client) InitialHeight(tubeType string, startVolumeUL float64) (float64, error) {
	var resp api.InitialHeightResponse
	req := api.InitialHeightRequest{TubeType: tubeType, StartVolumeUL: startVolumeUL}
	if err := c.postJSON("/initial-height", req, &resp); err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to compute initial height")
	}
	return resp.HeightMM, nil
}

func (c *Client) Step(req api.StepRequest) (*tracker.Result, error) {
	var res tracker.Result
	if err := c.postJSON("/step", req, &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to compute step")
	}
	return &res, nil
}

func (c *Client) CreateTracker(req api.CreateTrackerRequest) (*api.Session, error) {
	var s api.Session
	if err := c.postJSON("/trackers", req, &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create tracker")
	}
	return &s, nil
}

func (c *Client) ListTrackers() ([]api.Session, error) {
	var ret []api.Session
	if err := c.getJSON("/trackers", &ret); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list trackers")
	}
	return ret, nil
}

func (c *Client) GetTracker(id string) (*api.Session, error) {
	var s api.Session
	if err := c.getJSON("/trackers/"+url.PathEscape(id), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get tracker %s", id)
	}
	return &s, nil
}

func (c *Client) StepTracker(id string, deltaVolumeUL float64) (*tracker.Result, error) {
	var res tracker.Result
	req := api.TrackerStepRequest{DeltaVolumeUL: deltaVolumeUL}
	if err := c.postJSON("/trackers/"+url.PathEscape(id)+"/step", req, &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to step tracker %s", id)
	}
	return &res, nil
}

func (c *Client) DeleteTracker(id string) (string, error) {
	return message(c.Delete("/trackers/" + url.PathEscape(id)))
}

// Events follows the daemon's event stream and calls fn for every event
// until ctx is done, the daemon closes the stream, or fn returns an error.
func (c *Client) Events(ctx context.Context, fn func(events.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Debugf("failed to close event stream: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("got %d from event stream", resp.StatusCode)
	}

	var (
		name string
		data []string
	)
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if name == "" && len(data) == 0 {
				continue
			}
			ev := events.Event{Name: name, Data: json.RawMessage(strings.Join(data, "\n"))}
			name, data = "", nil
			if err := fn(ev); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return pkgerrors.Wrapf(err, "failed to read event stream")
	}
	return nil
}

func (c *Client) getJSON(path string, out any) error {
	ret, err := c.Get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(ret), out); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal response of %s", path)
	}
	return nil
}

func (c *Client) postJSON(path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	ret, err := c.Post(path, string(payload))
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(ret), out); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal response of %s", path)
	}
	return nil
}

func (c *Client) putJSON(path string, in any) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return c.Put(path, string(payload))
}

// message decodes the JSON string the daemon answers mutations with.
func message(ret string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	var msg string
	if err := json.Unmarshal([]byte(ret), &msg); err != nil {
		return ret, nil
	}
	return msg, nil
}
