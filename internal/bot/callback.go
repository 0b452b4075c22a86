package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Callback payloads are colon-delimited "action:arg1:arg2" tokens. Parsing
// happens in exactly one place so handlers dispatch on typed commands instead
// of string prefixes. Unknown or malformed payloads are reported as errors
// and ignored by the dispatcher, never fatal.

type Action string

const (
	ActionCourse             Action = "course"
	ActionGroup              Action = "group"
	ActionGroupsPage         Action = "groups_page"
	ActionEditName           Action = "edit_fio"
	ActionEditGroup          Action = "edit_group"
	ActionEditCourse         Action = "edit_course"
	ActionEditGroupsPage     Action = "edit_groups_page"
	ActionEditGroupSelect    Action = "edit_group_select"
	ActionSelectEventForCert Action = "select_event_for_certificate"
	ActionCertEventsPage     Action = "certificate_events_page"
	ActionCertEvent          Action = "certificate_event"
	ActionParticipate        Action = "participate"
	ActionAlreadyIn          Action = "already_participating"
)

var ErrUnknownCallback = errors.New("unknown callback action")

type Callback struct {
	Action  Action
	Course  int
	Page    int
	GroupID int
	EventID int64
}

func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	action := Action(parts[0])
	args := parts[1:]

	argInt := func(i int) (int, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("%w: %q is missing argument %d", ErrUnknownCallback, data, i)
		}
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return 0, fmt.Errorf("%w: %q has non-numeric argument %q", ErrUnknownCallback, data, args[i])
		}
		return n, nil
	}

	cb := Callback{Action: action}
	var err error
	switch action {
	case ActionCourse, ActionEditCourse:
		cb.Course, err = argInt(0)
	case ActionGroup, ActionEditGroupSelect:
		cb.GroupID, err = argInt(0)
	case ActionGroupsPage, ActionEditGroupsPage:
		if cb.Course, err = argInt(0); err == nil {
			cb.Page, err = argInt(1)
		}
	case ActionCertEventsPage:
		cb.Page, err = argInt(0)
	case ActionCertEvent, ActionParticipate:
		var id int
		id, err = argInt(0)
		cb.EventID = int64(id)
	case ActionEditName, ActionEditGroup, ActionSelectEventForCert, ActionAlreadyIn:
		// no arguments
	default:
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	if err != nil {
		return Callback{}, err
	}
	return cb, nil
}
