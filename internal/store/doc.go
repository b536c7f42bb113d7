// Package store содержит in-memory хранилища pipelines и executions.
//
// Определения pipeline и история запусков живут в памяти процесса:
// PipelineStore хранит копии определений, ExecutionStore — живые
// Recorder'ы с retention по завершённым запускам.
package store
