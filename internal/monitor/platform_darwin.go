//go:build darwin && cgo

package monitor

/*
#cgo LDFLAGS: -framework CoreFoundation -framework ApplicationServices

#include <dlfcn.h>
#include <stdint.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

typedef uint32_t HDConnectionID;
typedef HDConnectionID (*hd_main_conn_fn)(void);
typedef Boolean (*hd_is_unresponsive_fn)(const ProcessSerialNumber *psn);
typedef CGError (*hd_notify_proc_register_fn)(void (*proc)(uint32_t, void *, uint32_t, void *), uint32_t event, void *userdata);
typedef CGError (*hd_notify_proc_remove_fn)(void (*proc)(uint32_t, void *, uint32_t, void *), uint32_t event, void *userdata);

// Window Server notification event numbers for app responsiveness.
#define HD_EVENT_APP_UNRESPONSIVE 750
#define HD_EVENT_APP_RESPONSIVE   751

static hd_main_conn_fn hd_main_conn;
static hd_is_unresponsive_fn hd_is_unresponsive;
static hd_notify_proc_register_fn hd_register_notify;
static hd_notify_proc_remove_fn hd_remove_notify;
static CFRunLoopRef hd_push_runloop;

// The symbols moved from CoreGraphics to SkyLight across macOS
// releases, so both locations are tried.
static void *hd_resolve(const char *name) {
	static const char *paths[] = {
		"/System/Library/PrivateFrameworks/SkyLight.framework/Versions/A/SkyLight",
		"/System/Library/Frameworks/ApplicationServices.framework/Frameworks/CoreGraphics.framework/Versions/A/CoreGraphics",
		NULL,
	};
	for (int i = 0; paths[i] != NULL; i++) {
		void *handle = dlopen(paths[i], RTLD_LAZY | RTLD_NOLOAD);
		if (handle == NULL) {
			handle = dlopen(paths[i], RTLD_LAZY);
		}
		if (handle == NULL) {
			continue;
		}
		void *sym = dlsym(handle, name);
		if (sym != NULL) {
			return sym;
		}
	}
	return NULL;
}

static int hd_init_symbols(void) {
	hd_main_conn = (hd_main_conn_fn)hd_resolve("CGSMainConnectionID");
	hd_is_unresponsive = (hd_is_unresponsive_fn)hd_resolve("CGSEventIsAppUnresponsive");
	hd_register_notify = (hd_notify_proc_register_fn)hd_resolve("CGSRegisterNotifyProc");
	hd_remove_notify = (hd_notify_proc_remove_fn)hd_resolve("CGSRemoveNotifyProc");
	if (hd_main_conn == NULL || hd_is_unresponsive == NULL) {
		return -1;
	}
	// Establish the Window Server connection up front; the oracle is
	// unusable without one.
	if (hd_main_conn() == 0) {
		return -1;
	}
	return 0;
}

// Returns 1 hung, 0 responsive, -1 unknown.
static int hd_query_unresponsive(pid_t pid) {
	if (hd_is_unresponsive == NULL) {
		return -1;
	}
	ProcessSerialNumber psn;
	if (GetProcessForPID(pid, &psn) != noErr) {
		return -1;
	}
	return hd_is_unresponsive(&psn) ? 1 : 0;
}

extern void hungDetectPushCallback(uint32_t eventType, void *data, uint32_t dataLength);

static void hd_notify_trampoline(uint32_t type, void *data, uint32_t len, void *userdata) {
	hungDetectPushCallback(type, data, len);
}

static int hd_register_push(void) {
	if (hd_register_notify == NULL) {
		return -1;
	}
	if (hd_register_notify(hd_notify_trampoline, HD_EVENT_APP_UNRESPONSIVE, NULL) != kCGErrorSuccess) {
		return -1;
	}
	if (hd_register_notify(hd_notify_trampoline, HD_EVENT_APP_RESPONSIVE, NULL) != kCGErrorSuccess) {
		return -1;
	}
	hd_push_runloop = CFRunLoopGetCurrent();
	return 0;
}

static void hd_run_push_loop(void) {
	CFRunLoopRun();
}

static void hd_stop_push_loop(void) {
	if (hd_remove_notify != NULL) {
		hd_remove_notify(hd_notify_trampoline, HD_EVENT_APP_UNRESPONSIVE, NULL);
		hd_remove_notify(hd_notify_trampoline, HD_EVENT_APP_RESPONSIVE, NULL);
	}
	if (hd_push_runloop != NULL) {
		CFRunLoopStop(hd_push_runloop);
		hd_push_runloop = NULL;
	}
}

static pid_t hd_pid_from_psn_data(void *data, uint32_t len) {
	if (data == NULL || len < sizeof(ProcessSerialNumber)) {
		return 0;
	}
	pid_t pid = 0;
	if (GetProcessPID((const ProcessSerialNumber *)data, &pid) != noErr) {
		return 0;
	}
	return pid;
}
*/
import "C"

import (
	"encoding/binary"
	"errors"
	"runtime"
	"sync"
	"unsafe"
)

// cgsOracle answers responsiveness queries through the same private
// Window Server call Activity Monitor uses.
type cgsOracle struct {
	available bool
}

func (o *cgsOracle) Available() bool { return o.available }

func (o *cgsOracle) IsUnresponsive(pid int32) (bool, bool) {
	if !o.available {
		return false, false
	}
	switch C.hd_query_unresponsive(C.pid_t(pid)) {
	case 1:
		return true, true
	case 0:
		return false, true
	default:
		return false, false
	}
}

// activePushHandler is the one handler slot for the C notify trampoline.
// cgo callbacks cannot carry Go pointers as user data, so the binding to
// the owning engine happens here, guarded for the register/unregister
// transitions.
var (
	pushMu            sync.Mutex
	activePushHandler PushHandler
)

//export hungDetectPushCallback
func hungDetectPushCallback(eventType C.uint32_t, data unsafe.Pointer, dataLength C.uint32_t) {
	pushMu.Lock()
	h := activePushHandler
	pushMu.Unlock()
	if h == nil {
		return
	}

	var kind PushKind
	switch eventType {
	case C.HD_EVENT_APP_UNRESPONSIVE:
		kind = PushHung
	case C.HD_EVENT_APP_RESPONSIVE:
		kind = PushResponsive
	default:
		return
	}

	// Normalize the notification data to the fixed payload layout the
	// listener decodes: the target PID as little-endian uint32 at byte
	// offset 4. A notification too short to carry a serial number
	// produces a short payload, which the listener treats as
	// undecodable and corrects via rescan.
	pid := C.hd_pid_from_psn_data(data, dataLength)
	if pid == 0 {
		h(kind, C.GoBytes(data, C.int(dataLength)))
		return
	}
	payload := make([]byte, minPushLen)
	binary.LittleEndian.PutUint32(payload[:4], uint32(eventType))
	binary.LittleEndian.PutUint32(payload[pushPIDOffset:], uint32(pid))
	h(kind, payload)
}

// cgsPushChannel registers for Window Server responsiveness
// notifications. The notify proc needs a run loop on its registering
// thread, so Register dedicates an OS thread to it.
type cgsPushChannel struct {
	done chan struct{}
}

func (p *cgsPushChannel) Register(h PushHandler) error {
	pushMu.Lock()
	if activePushHandler != nil {
		pushMu.Unlock()
		return errors.New("push channel already registered")
	}
	activePushHandler = h
	pushMu.Unlock()

	result := make(chan error, 1)
	p.done = make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(p.done)

		if C.hd_register_push() != 0 {
			result <- errors.New("CGSRegisterNotifyProc failed")
			return
		}
		result <- nil
		C.hd_run_push_loop()
	}()

	if err := <-result; err != nil {
		pushMu.Lock()
		activePushHandler = nil
		pushMu.Unlock()
		return err
	}
	return nil
}

func (p *cgsPushChannel) Unregister() {
	C.hd_stop_push_loop()
	if p.done != nil {
		<-p.done
	}
	pushMu.Lock()
	activePushHandler = nil
	pushMu.Unlock()
}

// NewPlatform wires the real macOS oracle, enumerator, and push channel.
// A nil push channel is returned when notification symbols are missing;
// the engine then runs poll-only.
func NewPlatform() (Oracle, Enumerator, PushChannel) {
	available := C.hd_init_symbols() == 0
	oracle := &cgsOracle{available: available}

	var push PushChannel
	if available {
		push = &cgsPushChannel{}
	}
	return oracle, newPlatformEnumerator(), push
}
