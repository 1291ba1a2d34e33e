package config

type WorkerKeyStruct struct {
	PersistFlagsQueue   string
	PersistResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistFlagsQueue:   "persist_flags_queue",
	PersistResultsQueue: "persist_results_queue",
}
