package models

import (
	"log"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobTask struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Name          string      `json:"-"`
	JobType       string      `json:"-"`
	RunsAt        time.Time   `json:"-"`
	HandlerParams []any       `gorm:"type:jsonb" json:"-"`
	PayloadID     string      `json:"-"`
	Payload       types.JSONB `gorm:"type:jsonb" json:"-"`
	Source        string      `json:"-"`
	SourceType    string      `json:"-"`
	Status        string      `gorm:"default:'pending'" json:"-"`
	Topic         string      `json:"-"`
}

func (self *JobTask) CreateAndEnqueueJobTask(jobTask JobTask) (string, error) {
	var jobID string
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		tripId := jobTask.HandlerParams[0]
		clientId, _ := jobTask.Payload["producerClientId"].(string)
		sid, err := lib.NewScheduledJob(jobTask.RunsAt, map[string]string{
			"name":     jobTask.Name,
			"topic":    jobTask.Topic,
			"clientId": clientId,
		}, jobTask.Payload)
		if err != nil {
			log.Printf("Error creating job for TripRequest: id=%d error=%s\n", tripId, err.Error())
			return err
		}
		jobID = sid.String()
		jobTask.ID = *sid
		jobTask.Payload["JobID"] = jobID
		err = tx.Create(&jobTask).Error
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Printf("Created schedule for job %s with name %s at %s\n", jobID, jobTask.Name, jobTask.RunsAt.Format("2006-01-02T15:04:05"))
	return jobID, nil
}
