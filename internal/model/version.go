package model

// EngineVersion is stamped into trace journal runs so recorded traces can be
// matched to the simulator build that produced them.
const EngineVersion = "0.1.0"
