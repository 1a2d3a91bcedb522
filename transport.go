package steamctl

import (
	"encoding/json"

	"github.com/nats-io/nats.go/micro"
)

// SessionInfo is the wire form of a session on the management surface.
type SessionInfo struct {
	Device    string `json:"device"`
	Kind      string `json:"kind"`
	Raw       bool   `json:"raw"`
	Connected bool   `json:"connected"`
	Serial    string `json:"serial,omitempty"`
}

func SessionsHandler(svc Service) micro.HandlerFunc {
	return func(r micro.Request) {
		sessions := svc.Sessions()

		infos := make([]SessionInfo, 0, len(sessions))
		for _, session := range sessions {
			infos = append(infos, SessionInfo{
				Device:    session.ID(),
				Kind:      session.Kind().String(),
				Raw:       session.Raw(),
				Connected: session.Connected(),
				Serial:    session.Serial(),
			})
		}

		r.RespondJSON(&infos)
	}
}

// SettingRequest addresses one named setting of one session. Values are
// "on" or "off".
type SettingRequest struct {
	Device  string `json:"device"`
	Setting string `json:"setting"`
	Value   string `json:"value,omitempty"`
}

func GetSettingHandler(svc Service) micro.HandlerFunc {
	return func(r micro.Request) {
		var req SettingRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		session, err := svc.Session(req.Device)
		if err != nil {
			r.Error("404", err.Error(), nil)
			return
		}

		var value bool
		switch req.Setting {
		case "automouse":
			value = session.Automouse()
		case "autobuttons":
			value = session.AutoButtons()
		case "center_touchpads":
			value = session.CenterTouchpads()
		case "sensors":
			value = session.SensorsEnabled()
		default:
			r.Error("400", "setting not supported", nil)
			return
		}

		req.Value = onOff(value)
		r.RespondJSON(&req)
	}
}

// SetSettingHandler updates a shadowed setting. While the controller is
// connected the new value is pushed immediately, best-effort; while
// disconnected it applies at the next setup.
func SetSettingHandler(svc Service) micro.HandlerFunc {
	return func(r micro.Request) {
		var req SettingRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		session, err := svc.Session(req.Device)
		if err != nil {
			r.Error("404", err.Error(), nil)
			return
		}

		var on bool
		switch req.Value {
		case "on":
			on = true
		case "off":
			on = false
		default:
			r.Error("400", "invalid value", nil)
			return
		}

		switch req.Setting {
		case "automouse":
			session.SetAutomouse(on)
		case "autobuttons":
			session.SetAutoButtons(on)
		case "center_touchpads":
			session.SetCenterTouchpads(on)
		case "sensors":
			session.SetSensorsEnabled(on)
		default:
			r.Error("400", "setting not supported", nil)
			return
		}

		r.RespondJSON(&req)
	}
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}
