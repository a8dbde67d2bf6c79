package transaction

// State identifies a driver event delivered to the registered state
// callback.
type State string

// Driver states, in the vocabulary the front-ends switch on.
const (
	StateRemove                 State = "REMOVE"
	StateRemoveFile             State = "REMOVE_FILE"
	StateRemoveFileObsolete     State = "REMOVE_FILE_OBSOLETE"
	StateRemoveDone             State = "REMOVE_DONE"
	StateRemoveFail             State = "REMOVE_FAIL"
	StateRemoveFileFail         State = "REMOVE_FILE_FAIL"
	StateRemoveFileHashFail     State = "REMOVE_FILE_HASH_FAIL"
	StateRemoveFileObsoleteFail State = "REMOVE_FILE_OBSOLETE_FAIL"
	StateInstall                State = "INSTALL"
	StateConfigure              State = "CONFIGURE"
	StateUpdate                 State = "UPDATE"
	StateDownload               State = "DOWNLOAD"
	StateVerify                 State = "VERIFY"
	StateUnpack                 State = "UNPACK"
)

// StateEvent is one callback payload. The callback runs synchronously:
// it returns to the driver before the next plan step begins and must
// not re-enter driver operations.
type StateEvent struct {
	// State is the event kind.
	State State

	// Arg is the pkgver (or file path for per-file events) the event
	// refers to.
	Arg string

	// Desc is a human-readable description.
	Desc string

	// Err carries the failure for *_FAIL states, nil otherwise.
	Err error
}

// StateCallback receives driver events strictly in plan order.
type StateCallback func(StateEvent)
